package dock

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// PrefKey is the fixed key the dock configuration is persisted under.
const PrefKey = "dockConfig"

// Store owns the DockConfig aggregate. Mutations are synchronous and
// immediately persisted with full-replace semantics. Single-writer,
// multi-reader within one process.
type Store struct {
	mu     sync.RWMutex
	config domain.DockConfig
	prefs  domain.PrefStore
	logger *zap.Logger

	onDefaultChange func()
}

// NewStore loads the dock configuration from the preference store. Corrupt
// or missing data falls back to an empty aggregate.
func NewStore(prefs domain.PrefStore, logger *zap.Logger) *Store {
	s := &Store{prefs: prefs, logger: logger}
	s.load()
	return s
}

func (s *Store) load() {
	data, ok, err := s.prefs.Get(PrefKey)
	if err != nil || !ok {
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to read dock config, starting empty", zap.Error(err))
		}
		return
	}
	var cfg domain.DockConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		if s.logger != nil {
			s.logger.Warn("corrupt dock config, starting empty", zap.Error(err))
		}
		return
	}
	s.config = cfg
}

// SetDefaultChangeHook registers a callback fired whenever the default set
// id changes. The switch scheduler uses it to clear its last-applied marker
// so the next space change always re-evaluates.
func (s *Store) SetDefaultChangeHook(fn func()) {
	s.mu.Lock()
	s.onDefaultChange = fn
	s.mu.Unlock()
}

// Config returns a snapshot of the aggregate.
func (s *Store) Config() domain.DockConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.DockConfig {
	cfg := domain.DockConfig{
		DockSets:         make([]domain.DockSet, len(s.config.DockSets)),
		DefaultDockSetID: s.config.DefaultDockSetID,
		SpaceAssignments: make(map[string]string, len(s.config.SpaceAssignments)),
	}
	copy(cfg.DockSets, s.config.DockSets)
	for k, v := range s.config.SpaceAssignments {
		cfg.SpaceAssignments[k] = v
	}
	return cfg
}

// AddSet appends a set. When no default exists yet the new set becomes the
// default.
func (s *Store) AddSet(set domain.DockSet) error {
	s.mu.Lock()
	s.config.DockSets = append(s.config.DockSets, set)
	defaultChanged := false
	if s.config.DefaultDockSetID == "" {
		s.config.DefaultDockSetID = set.ID
		defaultChanged = true
	}
	err := s.saveLocked()
	hook := s.onDefaultChange
	s.mu.Unlock()

	if defaultChanged && err == nil && hook != nil {
		hook()
	}
	return err
}

// DeleteSet removes a set by id and cascades: stale space assignments are
// purged, and a deleted default is reassigned to the first remaining set or
// cleared when none remain.
func (s *Store) DeleteSet(id string) error {
	s.mu.Lock()
	kept := s.config.DockSets[:0]
	for _, set := range s.config.DockSets {
		if set.ID != id {
			kept = append(kept, set)
		}
	}
	s.config.DockSets = kept

	for spaceID, setID := range s.config.SpaceAssignments {
		if setID == id {
			delete(s.config.SpaceAssignments, spaceID)
		}
	}

	defaultChanged := false
	if s.config.DefaultDockSetID == id {
		s.config.DefaultDockSetID = ""
		if len(s.config.DockSets) > 0 {
			s.config.DefaultDockSetID = s.config.DockSets[0].ID
		}
		defaultChanged = true
	}

	err := s.saveLocked()
	hook := s.onDefaultChange
	s.mu.Unlock()

	if defaultChanged && err == nil && hook != nil {
		hook()
	}
	return err
}

// SetDefault points the default at an existing set. Unknown ids are
// rejected so the default never dangles.
func (s *Store) SetDefault(id string) error {
	s.mu.Lock()
	if _, ok := s.config.SetByID(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown dock set %q", id)
	}
	changed := s.config.DefaultDockSetID != id
	s.config.DefaultDockSetID = id
	err := s.saveLocked()
	hook := s.onDefaultChange
	s.mu.Unlock()

	if changed && err == nil && hook != nil {
		hook()
	}
	return err
}

// AssignSpace maps a space to a set.
func (s *Store) AssignSpace(spaceID, setID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.config.SetByID(setID); !ok {
		return fmt.Errorf("unknown dock set %q", setID)
	}
	if s.config.SpaceAssignments == nil {
		s.config.SpaceAssignments = make(map[string]string)
	}
	s.config.SpaceAssignments[spaceID] = setID
	return s.saveLocked()
}

// UnassignSpace removes a space's assignment.
func (s *Store) UnassignSpace(spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.config.SpaceAssignments, spaceID)
	return s.saveLocked()
}

// AddTile appends a tile to a set.
func (s *Store) AddTile(setID string, tile domain.DockTile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.config.DockSets {
		if s.config.DockSets[i].ID == setID {
			s.config.DockSets[i].Tiles = append(s.config.DockSets[i].Tiles, tile)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("unknown dock set %q", setID)
}

// RemoveTile removes a tile from a set by tile id.
func (s *Store) RemoveTile(setID, tileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.config.DockSets {
		if s.config.DockSets[i].ID != setID {
			continue
		}
		tiles := s.config.DockSets[i].Tiles[:0]
		for _, t := range s.config.DockSets[i].Tiles {
			if t.ID != tileID {
				tiles = append(tiles, t)
			}
		}
		s.config.DockSets[i].Tiles = tiles
		return s.saveLocked()
	}
	return fmt.Errorf("unknown dock set %q", setID)
}

// MoveTile reorders a tile within a set.
func (s *Store) MoveTile(setID string, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.config.DockSets {
		if s.config.DockSets[i].ID != setID {
			continue
		}
		tiles := s.config.DockSets[i].Tiles
		if from < 0 || from >= len(tiles) || to < 0 || to >= len(tiles) {
			return fmt.Errorf("tile index out of range")
		}
		t := tiles[from]
		tiles = append(tiles[:from], tiles[from+1:]...)
		tiles = append(tiles[:to], append([]domain.DockTile{t}, tiles[to:]...)...)
		s.config.DockSets[i].Tiles = tiles
		return s.saveLocked()
	}
	return fmt.Errorf("unknown dock set %q", setID)
}

// CaptureCurrent reads the OS dock store's current pinned items and appends
// them as a new named set. The first captured set becomes the default.
func (s *Store) CaptureCurrent(name string, dockPrefs domain.DockPrefs) (domain.DockSet, error) {
	raws, err := dockPrefs.ReadRawTiles()
	if err != nil {
		return domain.DockSet{}, fmt.Errorf("failed to read dock store: %w", err)
	}

	set := domain.DockSet{
		ID:          uuid.NewString(),
		Name:        name,
		DateCreated: time.Now(),
		Tiles:       make([]domain.DockTile, 0, len(raws)),
	}
	for _, raw := range raws {
		set.Tiles = append(set.Tiles, ParseRawTile(raw))
	}

	if err := s.AddSet(set); err != nil {
		return domain.DockSet{}, err
	}
	return set, nil
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("failed to encode dock config: %w", err)
	}
	if err := s.prefs.Set(PrefKey, data); err != nil {
		return fmt.Errorf("failed to persist dock config: %w", err)
	}
	return nil
}

// --- domain.DockConfigSource implementation (scheduler's read view) ---

// DefaultDockSetID returns the default set id, or "" when unset.
func (s *Store) DefaultDockSetID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.DefaultDockSetID
}

// AssignedDockSetID returns the set assigned to a space, if any.
func (s *Store) AssignedDockSetID(spaceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.config.SpaceAssignments[spaceID]
	return id, ok
}

// DockSetByID looks a set up by id.
func (s *Store) DockSetByID(id string) (domain.DockSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.SetByID(id)
}

// Ensure Store satisfies the scheduler's read view.
var _ domain.DockConfigSource = (*Store)(nil)
