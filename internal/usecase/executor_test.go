package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacepal/spacepal/internal/domain"
)

// mockWindows implements domain.WindowController and records calls
type mockWindows struct {
	calls       []string
	frontmost   string
	activateErr error
}

func (m *mockWindows) record(op, bundleID string) {
	m.calls = append(m.calls, op+":"+bundleID)
}

func (m *mockWindows) HideApp(ctx context.Context, bundleID, appName string) error {
	m.record("hide", bundleID)
	return nil
}

func (m *mockWindows) UnhideApp(ctx context.Context, bundleID, appName string) error {
	m.record("unhide", bundleID)
	return nil
}

func (m *mockWindows) MinimizeAll(ctx context.Context, bundleID, appName string) error {
	m.record("minimize", bundleID)
	return nil
}

func (m *mockWindows) RestoreAll(ctx context.Context, bundleID, appName string) error {
	m.record("restore", bundleID)
	return nil
}

func (m *mockWindows) ActivateApp(ctx context.Context, bundleID, appName string) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.record("activate", bundleID)
	m.frontmost = bundleID
	return nil
}

func (m *mockWindows) FrontmostBundleID(ctx context.Context) string {
	return m.frontmost
}

// mockKeys implements domain.KeyEventPoster and records posted events
type mockKeys struct {
	events []string
}

func (m *mockKeys) PostKeyEvent(ctx context.Context, keyCode int, modifiers uint32, keyDown bool) error {
	edge := "up"
	if keyDown {
		edge = "down"
	}
	m.events = append(m.events, fmt.Sprintf("%d/%d/%s", keyCode, modifiers, edge))
	return nil
}

// mockAppLocator implements domain.AppLocator
type mockAppLocator struct {
	running map[string]bool
}

func (m *mockAppLocator) IsRunning(bundleID, appName string) bool {
	return m.running[bundleID]
}

func (m *mockAppLocator) ResolveBundleID(appPath string) (string, error) {
	return "", nil
}

func newTestExecutor(windows *mockWindows, keys *mockKeys, locator *mockAppLocator) *Executor {
	e := NewExecutor(windows, keys, locator, nil)
	e.sleep = func(context.Context, time.Duration) {} // no settle in tests
	return e
}

func execRule(bundleID string) domain.AppRule {
	return domain.AppRule{ID: "r1", AppBundleID: bundleID, AppName: "App", Enabled: true}
}

// TestExecutor_ShowUnhidesAndRestores verifies show = unhide + restore all
func TestExecutor_ShowUnhidesAndRestores(t *testing.T) {
	windows := &mockWindows{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, &mockKeys{}, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.SimpleAction(domain.ActionShow)})
	require.NoError(t, err)

	assert.Equal(t, []string{"unhide:com.example.app", "restore:com.example.app"}, windows.calls)
}

// TestExecutor_StrictActionOrder verifies actions run in list order
func TestExecutor_StrictActionOrder(t *testing.T) {
	windows := &mockWindows{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, &mockKeys{}, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"), []domain.ActionItem{
		domain.SimpleAction(domain.ActionMinimize),
		domain.SimpleAction(domain.ActionBringToFront),
		domain.SimpleAction(domain.ActionHide),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"minimize:com.example.app",
		"activate:com.example.app",
		"hide:com.example.app",
	}, windows.calls)
}

// TestExecutor_AppNotRunningIsSilentNoOp verifies the expected-absence path
func TestExecutor_AppNotRunningIsSilentNoOp(t *testing.T) {
	windows := &mockWindows{}
	e := newTestExecutor(windows, &mockKeys{}, &mockAppLocator{running: map[string]bool{}})

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.SimpleAction(domain.ActionHide)})
	require.NoError(t, err)
	assert.Empty(t, windows.calls)
}

// TestExecutor_UnsetKeyCodeNeverDispatches verifies the -1 sentinel produces
// zero synthetic key events
func TestExecutor_UnsetKeyCodeNeverDispatches(t *testing.T) {
	keys := &mockKeys{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(&mockWindows{}, keys, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"), []domain.ActionItem{
		domain.HotkeyAction(domain.KeyCodeUnset, 1<<20, false, false),
		domain.GlobalHotkeyAction(domain.KeyCodeUnset, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, keys.events)
}

// TestExecutor_HotkeyActivatesNonFrontmostApp verifies activation precedes
// dispatch when the target is not frontmost
func TestExecutor_HotkeyActivatesNonFrontmostApp(t *testing.T) {
	windows := &mockWindows{frontmost: "com.other.app"}
	keys := &mockKeys{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, keys, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.HotkeyAction(36, 1<<20, false, false)})
	require.NoError(t, err)

	assert.Equal(t, []string{"activate:com.example.app"}, windows.calls)
	assert.Equal(t, []string{"36/1048576/down", "36/1048576/up"}, keys.events)
}

// TestExecutor_HotkeySkipsActivationWhenFrontmost verifies no redundant
// activation for an already-frontmost target
func TestExecutor_HotkeySkipsActivationWhenFrontmost(t *testing.T) {
	windows := &mockWindows{frontmost: "com.example.app"}
	keys := &mockKeys{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, keys, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.HotkeyAction(36, 0, false, false)})
	require.NoError(t, err)

	assert.Empty(t, windows.calls)
	assert.Len(t, keys.events, 2)
}

// TestExecutor_WaitForFrontmostSkipsDispatch verifies the policy flag skips
// dispatch entirely instead of stealing focus
func TestExecutor_WaitForFrontmostSkipsDispatch(t *testing.T) {
	windows := &mockWindows{frontmost: "com.other.app"}
	keys := &mockKeys{}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, keys, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.HotkeyAction(36, 0, false, true)})
	require.NoError(t, err)

	assert.Empty(t, windows.calls)
	assert.Empty(t, keys.events)
}

// TestExecutor_GlobalHotkeyIgnoresAppState verifies dispatch without any
// app-activation precondition
func TestExecutor_GlobalHotkeyIgnoresAppState(t *testing.T) {
	keys := &mockKeys{}
	e := newTestExecutor(&mockWindows{}, keys, &mockAppLocator{running: map[string]bool{}})

	err := e.Execute(context.Background(), execRule("com.example.app"),
		[]domain.ActionItem{domain.GlobalHotkeyAction(49, 0)})
	require.NoError(t, err)

	assert.Equal(t, []string{"49/0/down", "49/0/up"}, keys.events)
}

// TestExecutor_StepErrorAbortsSequence verifies remaining steps are skipped
// after a hard failure
func TestExecutor_StepErrorAbortsSequence(t *testing.T) {
	windows := &mockWindows{activateErr: errors.New("activation refused")}
	locator := &mockAppLocator{running: map[string]bool{"com.example.app": true}}
	e := newTestExecutor(windows, &mockKeys{}, locator)

	err := e.Execute(context.Background(), execRule("com.example.app"), []domain.ActionItem{
		domain.SimpleAction(domain.ActionBringToFront),
		domain.SimpleAction(domain.ActionHide),
	})
	require.Error(t, err)
	assert.Empty(t, windows.calls, "hide must not run after the failed activation")
}
