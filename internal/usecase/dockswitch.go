package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
	"github.com/spacepal/spacepal/internal/dock"
)

const (
	// switchDebounceDelay defers a dock switch until space changes stop;
	// only the last stable destination of a rapid sequence is realized.
	switchDebounceDelay = 300 * time.Millisecond

	// flushSettleDelay lets a successful preference write propagate before
	// the disruptive dock restart.
	flushSettleDelay = 150 * time.Millisecond
)

// DockSwitcher reacts to space changes by swapping the pinned dock items.
// At most one pending switch attempt exists at a time; a new space change
// cancels the previous attempt during its debounce sleep. Once the mutating
// write -> flush -> restart sequence starts it always runs to completion, so
// the OS dock store and the last-applied marker can never diverge mid-write.
type DockSwitcher struct {
	config  domain.DockConfigSource
	prefs   domain.DockPrefs
	process domain.DockProcess
	logger  *zap.Logger

	debounce time.Duration
	settle   time.Duration

	mu            sync.Mutex
	pendingCancel context.CancelFunc
	lastApplied   string
}

// NewDockSwitcher creates a dock switch scheduler with the fixed production
// delays.
func NewDockSwitcher(
	config domain.DockConfigSource,
	prefs domain.DockPrefs,
	process domain.DockProcess,
	logger *zap.Logger,
) *DockSwitcher {
	return NewDockSwitcherWithTiming(config, prefs, process, logger, switchDebounceDelay, flushSettleDelay)
}

// NewDockSwitcherWithTiming creates a scheduler with custom delays (tests).
func NewDockSwitcherWithTiming(
	config domain.DockConfigSource,
	prefs domain.DockPrefs,
	process domain.DockProcess,
	logger *zap.Logger,
	debounce, settle time.Duration,
) *DockSwitcher {
	return &DockSwitcher{
		config:   config,
		prefs:    prefs,
		process:  process,
		logger:   logger,
		debounce: debounce,
		settle:   settle,
	}
}

// HandleSpaceChange cancels any pending switch and schedules a new debounced
// attempt for the given space. Intended as a registry subscription callback.
func (s *DockSwitcher) HandleSpaceChange(space domain.SpaceDescriptor) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.pendingCancel != nil {
		s.pendingCancel()
	}
	s.pendingCancel = cancel
	s.mu.Unlock()

	go s.attempt(ctx, space.ID)
}

// Stop cancels any pending switch attempt.
func (s *DockSwitcher) Stop() {
	s.mu.Lock()
	if s.pendingCancel != nil {
		s.pendingCancel()
		s.pendingCancel = nil
	}
	s.mu.Unlock()
}

// InvalidateLastApplied clears the last-applied marker. Wired to the dock
// config store's default-change hook so the next space change re-evaluates
// instead of being skipped by stale-match logic.
func (s *DockSwitcher) InvalidateLastApplied() {
	s.mu.Lock()
	s.lastApplied = ""
	s.mu.Unlock()
}

// LastAppliedDockSetID returns the id of the most recently applied set.
func (s *DockSwitcher) LastAppliedDockSetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastApplied
}

func (s *DockSwitcher) attempt(ctx context.Context, spaceID string) {
	timer := time.NewTimer(s.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	// Cancellation is checked exactly once here, before any mutating OS
	// call. Past this point the attempt runs to completion.
	if ctx.Err() != nil {
		return
	}

	defaultID := s.config.DefaultDockSetID()
	target, assigned := s.config.AssignedDockSetID(spaceID)
	if !assigned {
		target = defaultID
	}
	if target == "" {
		return
	}

	// A reset to the default always proceeds, even when it matches the
	// last applied id: system state may have drifted out of band and a
	// reset action must always have effect.
	if target != defaultID && target == s.LastAppliedDockSetID() {
		return
	}

	set, ok := s.config.DockSetByID(target)
	if !ok {
		return
	}

	s.apply(set, spaceID)
}

func (s *DockSwitcher) apply(set domain.DockSet, spaceID string) {
	if err := s.prefs.WriteRawTiles(dock.RawTiles(set.Tiles)); err != nil {
		// Flush failure: abort before the disruptive restart and keep the
		// last-applied marker so a retry happens naturally on the next
		// space change.
		if s.logger != nil {
			s.logger.Warn("dock store flush failed, skipping restart",
				zap.String("dock_set", set.Name),
				zap.Error(err))
		}
		return
	}

	time.Sleep(s.settle)

	if err := s.process.Restart(context.Background()); err != nil {
		if s.logger != nil {
			s.logger.Warn("dock restart failed",
				zap.String("dock_set", set.Name),
				zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.lastApplied = set.ID
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("dock set applied",
			zap.String("dock_set", set.Name),
			zap.String("dock_set_id", set.ID),
			zap.String("space_id", spaceID),
			zap.Int("tiles", len(set.Tiles)))
	}
}
