// Package usecase contains application business logic: the window action
// executor, the rule engine, and the dock switch scheduler.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// activateSettleDelay is the fixed wait after activating an app before a
// hotkey dispatch, letting the activation land first. A scheduling delay,
// not a timeout.
const activateSettleDelay = 100 * time.Millisecond

// Executor performs ordered window action sequences against one target
// application. Expected-absence conditions (app not running, permission
// missing) degrade to no-ops inside the adapters; the executor only surfaces
// genuine OS failures.
type Executor struct {
	windows domain.WindowController
	keys    domain.KeyEventPoster
	locator domain.AppLocator
	logger  *zap.Logger

	// sleep is injectable so tests do not pay the settle delay.
	sleep func(ctx context.Context, d time.Duration)
}

// NewExecutor creates a window action executor.
func NewExecutor(
	windows domain.WindowController,
	keys domain.KeyEventPoster,
	locator domain.AppLocator,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		windows: windows,
		keys:    keys,
		locator: locator,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Execute runs the actions in strict list order, each step awaited before
// the next. A step error aborts the remaining steps of this sequence; the
// caller isolates failures across rules.
func (e *Executor) Execute(ctx context.Context, rule domain.AppRule, actions []domain.ActionItem) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.executeOne(ctx, rule, action); err != nil {
			return fmt.Errorf("action %s: %w", action.Kind, err)
		}
	}
	return nil
}

func (e *Executor) executeOne(ctx context.Context, rule domain.AppRule, action domain.ActionItem) error {
	// Global hotkeys carry no app precondition; everything else is a silent
	// no-op when the target app is not running.
	if action.Kind != domain.ActionGlobalHotkey && action.Kind != domain.ActionDoNothing {
		if !e.locator.IsRunning(rule.AppBundleID, rule.AppName) {
			if e.logger != nil {
				e.logger.Debug("target app not running, skipping action",
					zap.String("bundle_id", rule.AppBundleID),
					zap.String("action", string(action.Kind)))
			}
			return nil
		}
	}

	switch action.Kind {
	case domain.ActionDoNothing:
		return nil

	case domain.ActionShow:
		// Unhide without changing focus, then restore minimized windows.
		if err := e.windows.UnhideApp(ctx, rule.AppBundleID, rule.AppName); err != nil {
			return err
		}
		return e.windows.RestoreAll(ctx, rule.AppBundleID, rule.AppName)

	case domain.ActionHide:
		return e.windows.HideApp(ctx, rule.AppBundleID, rule.AppName)

	case domain.ActionMinimize:
		return e.windows.MinimizeAll(ctx, rule.AppBundleID, rule.AppName)

	case domain.ActionBringToFront:
		return e.windows.ActivateApp(ctx, rule.AppBundleID, rule.AppName)

	case domain.ActionHotkey:
		return e.dispatchHotkey(ctx, rule, action)

	case domain.ActionGlobalHotkey:
		return e.postKey(ctx, action)

	default:
		// Unknown persisted kinds degrade to inaction.
		if e.logger != nil {
			e.logger.Warn("unknown action kind", zap.String("kind", string(action.Kind)))
		}
		return nil
	}
}

func (e *Executor) dispatchHotkey(ctx context.Context, rule domain.AppRule, action domain.ActionItem) error {
	if action.Hotkey == nil || action.Hotkey.KeyCode == domain.KeyCodeUnset {
		return nil
	}

	if e.windows.FrontmostBundleID(ctx) != rule.AppBundleID {
		if action.Hotkey.WaitForFrontmost {
			// Policy flag: skip dispatch until the app becomes frontmost
			// through other means. Not a blocking wait.
			return nil
		}
		if err := e.windows.ActivateApp(ctx, rule.AppBundleID, rule.AppName); err != nil {
			return err
		}
		e.sleep(ctx, activateSettleDelay)
	}

	if err := e.postKey(ctx, action); err != nil {
		return err
	}

	if action.Hotkey.RestoreWindow && e.logger != nil {
		// Best-effort hint only; the previously focused window is restored
		// by the app's own focus handling once it processes the key event.
		e.logger.Debug("hotkey dispatched with restore-window hint",
			zap.String("bundle_id", rule.AppBundleID))
	}
	return nil
}

func (e *Executor) postKey(ctx context.Context, action domain.ActionItem) error {
	if action.Hotkey == nil || action.Hotkey.KeyCode == domain.KeyCodeUnset {
		return nil
	}
	if err := e.keys.PostKeyEvent(ctx, action.Hotkey.KeyCode, action.Hotkey.Modifiers, true); err != nil {
		return err
	}
	return e.keys.PostKeyEvent(ctx, action.Hotkey.KeyCode, action.Hotkey.Modifiers, false)
}
