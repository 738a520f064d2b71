// Package daemon wires the space feed, the registry, and the two reactive
// engines into the background process.
package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
	"github.com/spacepal/spacepal/internal/spaces"
	"github.com/spacepal/spacepal/internal/usecase"
)

// Daemon pumps normalized space events from the external transport into the
// registry, which fans them out to the rule engine and the dock switch
// scheduler. Each reactor holds its own subscription and its own scheduling
// policy; the daemon never couples them.
type Daemon struct {
	feed     domain.SpaceFeed
	registry *spaces.Registry
	engine   *usecase.RuleEngine
	switcher *usecase.DockSwitcher
	logger   *zap.Logger
}

// NewDaemon creates the daemon over fully-wired components.
func NewDaemon(
	feed domain.SpaceFeed,
	registry *spaces.Registry,
	engine *usecase.RuleEngine,
	switcher *usecase.DockSwitcher,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		feed:     feed,
		registry: registry,
		engine:   engine,
		switcher: switcher,
		logger:   logger,
	}
}

// Run blocks until the context is canceled or the feed closes.
func (d *Daemon) Run(ctx context.Context) error {
	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	go func() { _ = d.engine.Run(engineCtx) }()

	unsubEngine := d.registry.Subscribe(d.engine.HandleSpaceChange)
	defer unsubEngine()
	unsubSwitcher := d.registry.Subscribe(d.switcher.HandleSpaceChange)
	defer unsubSwitcher()
	defer d.switcher.Stop()

	if err := d.registry.Refresh(); err != nil {
		d.logger.Warn("initial space refresh failed", zap.Error(err))
	}

	d.logger.Info("daemon started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			_ = d.feed.Close()
			return ctx.Err()

		case event, ok := <-d.feed.Events():
			if !ok {
				d.logger.Warn("space feed closed")
				return nil
			}
			d.dispatch(event)
		}
	}
}

func (d *Daemon) dispatch(event domain.SpaceEvent) {
	switch event.Kind {
	case domain.SpaceEventChanged:
		d.registry.SetCurrent(event.Space)
	case domain.SpaceEventList:
		d.registry.ReplaceSpaces(event.Spaces)
	}
}
