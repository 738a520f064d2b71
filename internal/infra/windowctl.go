package infra

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// Modifier mask bits, matching the macOS event modifier flags.
const (
	ModShift   uint32 = 1 << 17
	ModControl uint32 = 1 << 18
	ModOption  uint32 = 1 << 19
	ModCommand uint32 = 1 << 20
)

// OsascriptWindowController implements domain.WindowController and
// domain.KeyEventPoster by driving System Events through osascript.
// Script failures degrade to no-ops: the usual cause is a missing
// accessibility permission, which is an expected operating condition the
// core cannot fix.
type OsascriptWindowController struct {
	runner CommandRunner
	logger *zap.Logger
}

// NewWindowController creates an osascript-backed window controller.
func NewWindowController(logger *zap.Logger) *OsascriptWindowController {
	return &OsascriptWindowController{runner: &RealCommandRunner{}, logger: logger}
}

// NewWindowControllerWithRunner creates a controller with an injectable
// command runner (tests).
func NewWindowControllerWithRunner(runner CommandRunner, logger *zap.Logger) *OsascriptWindowController {
	return &OsascriptWindowController{runner: runner, logger: logger}
}

// processRef builds the System Events reference for the target app,
// preferring the bundle identifier over the display name.
func processRef(bundleID, appName string) string {
	if bundleID != "" {
		return fmt.Sprintf("first process whose bundle identifier is %q", bundleID)
	}
	return fmt.Sprintf("process %q", appName)
}

func (c *OsascriptWindowController) runScript(script string) error {
	if err := c.runner.Run("osascript", "-e", script); err != nil {
		// Degrade: System Events refuses without the accessibility
		// permission, and a missing process is an expected absence.
		if c.logger != nil {
			c.logger.Debug("system events script failed",
				zap.String("script", script),
				zap.Error(err))
		}
		return nil
	}
	return nil
}

// HideApp hides the application.
func (c *OsascriptWindowController) HideApp(ctx context.Context, bundleID, appName string) error {
	return c.runScript(fmt.Sprintf(
		`tell application "System Events" to set visible of (%s) to false`,
		processRef(bundleID, appName)))
}

// UnhideApp unhides the application without changing focus.
func (c *OsascriptWindowController) UnhideApp(ctx context.Context, bundleID, appName string) error {
	return c.runScript(fmt.Sprintf(
		`tell application "System Events" to set visible of (%s) to true`,
		processRef(bundleID, appName)))
}

// MinimizeAll minimizes all of the application's windows.
func (c *OsascriptWindowController) MinimizeAll(ctx context.Context, bundleID, appName string) error {
	return c.runScript(fmt.Sprintf(
		`tell application "System Events" to tell (%s) to set value of attribute "AXMinimized" of every window to true`,
		processRef(bundleID, appName)))
}

// RestoreAll un-minimizes all of the application's windows.
func (c *OsascriptWindowController) RestoreAll(ctx context.Context, bundleID, appName string) error {
	return c.runScript(fmt.Sprintf(
		`tell application "System Events" to tell (%s) to set value of attribute "AXMinimized" of every window to false`,
		processRef(bundleID, appName)))
}

// ActivateApp activates the application, stealing focus.
func (c *OsascriptWindowController) ActivateApp(ctx context.Context, bundleID, appName string) error {
	if bundleID != "" {
		return c.runScript(fmt.Sprintf(`tell application id %q to activate`, bundleID))
	}
	return c.runScript(fmt.Sprintf(`tell application %q to activate`, appName))
}

// FrontmostBundleID returns the bundle id of the foreground app, or "" when
// it cannot be determined.
func (c *OsascriptWindowController) FrontmostBundleID(ctx context.Context) string {
	out, err := c.runner.Output("osascript", "-e",
		`tell application "System Events" to get bundle identifier of first process whose frontmost is true`)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// PostKeyEvent posts a synthetic key event into the global input stream.
// System Events delivers a complete press per `key code` invocation, so the
// down edge dispatches and the up edge is absorbed here.
func (c *OsascriptWindowController) PostKeyEvent(ctx context.Context, keyCode int, modifiers uint32, keyDown bool) error {
	if !keyDown {
		return nil
	}
	script := fmt.Sprintf(`tell application "System Events" to key code %d`, keyCode)
	if using := modifierClause(modifiers); using != "" {
		script += " using " + using
	}
	return c.runScript(script)
}

// modifierClause renders a modifier mask as a System Events "using" clause.
func modifierClause(modifiers uint32) string {
	var parts []string
	if modifiers&ModShift != 0 {
		parts = append(parts, "shift down")
	}
	if modifiers&ModControl != 0 {
		parts = append(parts, "control down")
	}
	if modifiers&ModOption != 0 {
		parts = append(parts, "option down")
	}
	if modifiers&ModCommand != 0 {
		parts = append(parts, "command down")
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Ensure the controller implements both capability interfaces.
var (
	_ domain.WindowController = (*OsascriptWindowController)(nil)
	_ domain.KeyEventPoster   = (*OsascriptWindowController)(nil)
)
