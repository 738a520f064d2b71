package domain

import "context"

// PrefStore is the key-value persistence surface for the rule collection and
// the dock configuration. Aggregates are stored as whole JSON blobs under
// fixed keys with full-replace semantics.
// Implementation: SQLite kv table (go-sqlcipher driver).
type PrefStore interface {
	// Get returns the stored blob for key. ok is false when the key has
	// never been written.
	Get(key string) (data []byte, ok bool, err error)

	// Set replaces the blob stored under key.
	Set(key string, data []byte) error

	// Close releases the backing database connection.
	Close() error
}

// WindowController performs per-application window operations. Every method
// degrades to a no-op (returning nil) when the target app is not running or
// the accessibility permission is missing - these are expected operating
// conditions, not failures.
type WindowController interface {
	// HideApp hides the application.
	HideApp(ctx context.Context, bundleID, appName string) error

	// UnhideApp unhides the application without changing focus.
	UnhideApp(ctx context.Context, bundleID, appName string) error

	// MinimizeAll minimizes all of the application's windows.
	MinimizeAll(ctx context.Context, bundleID, appName string) error

	// RestoreAll un-minimizes all of the application's windows.
	RestoreAll(ctx context.Context, bundleID, appName string) error

	// ActivateApp activates the application, stealing focus.
	ActivateApp(ctx context.Context, bundleID, appName string) error

	// FrontmostBundleID returns the bundle id of the foreground app, or ""
	// when it cannot be determined.
	FrontmostBundleID(ctx context.Context) string
}

// KeyEventPoster injects synthetic keyboard events into the global input
// stream. Isolated so action sequencing is testable without a real input
// backend.
type KeyEventPoster interface {
	// PostKeyEvent posts a key-down or key-up event carrying the given key
	// code and modifier mask.
	PostKeyEvent(ctx context.Context, keyCode int, modifiers uint32, keyDown bool) error
}

// AppLocator answers whether a target application is currently running and
// resolves bundle identifiers for apps on disk.
type AppLocator interface {
	// IsRunning reports whether the app identified by bundle id (preferred)
	// or display name has a running process.
	IsRunning(bundleID, appName string) bool

	// ResolveBundleID reads the bundle identifier of an application bundle
	// at the given path. Returns "" without error when unresolvable.
	ResolveBundleID(appPath string) (string, error)
}

// DockPrefs is the OS dock preference store: a named array of opaque tile
// records, read and overwritten wholesale.
type DockPrefs interface {
	// ReadRawTiles returns the current pinned-item records, one opaque
	// binary-plist blob per tile.
	ReadRawTiles() ([][]byte, error)

	// WriteRawTiles replaces the pinned-item array and flushes the backing
	// store synchronously. A non-nil error means the flush failed and no
	// dependent action (dock restart) may proceed.
	WriteRawTiles(tiles [][]byte) error
}

// DockProcess restarts the dock-hosting process and confirms completion.
type DockProcess interface {
	// Restart asks the dock process to restart and waits for the restart
	// command to complete.
	Restart(ctx context.Context) error
}

// SpaceEventKind discriminates the normalized feed events.
type SpaceEventKind string

const (
	// SpaceEventChanged announces "current space is Space".
	SpaceEventChanged SpaceEventKind = "spaceChanged"
	// SpaceEventList replaces the known-spaces collection.
	SpaceEventList SpaceEventKind = "spaceList"
)

// SpaceEvent is one normalized event from the external space-change
// transport. The wire format of the transport is out of scope; only this
// carried data matters.
type SpaceEvent struct {
	Kind   SpaceEventKind
	Space  SpaceDescriptor   // valid for SpaceEventChanged
	Spaces []SpaceDescriptor // valid for SpaceEventList
}

// SpaceFeed adapts the external inter-process transport that discovers and
// announces space changes. Delivery is at-least-once; consumers must treat
// duplicate consecutive values as ignorable.
type SpaceFeed interface {
	// Events returns the normalized event stream. The channel closes when
	// the feed shuts down.
	Events() <-chan SpaceEvent

	// Refresh asks the transport to re-announce the space list and current
	// space.
	Refresh() error

	// Close shuts the feed down.
	Close() error
}

// RuleSource is the engine's read-only view of the rule collection.
type RuleSource interface {
	// Rules returns the rules in store order.
	Rules() []AppRule
}

// DockConfigSource is the switch scheduler's narrow read view of the dock
// configuration.
type DockConfigSource interface {
	// DefaultDockSetID returns the default set id, or "" when unset.
	DefaultDockSetID() string

	// AssignedDockSetID returns the set assigned to a space, if any.
	AssignedDockSetID(spaceID string) (string, bool)

	// DockSetByID looks a set up by id.
	DockSetByID(id string) (DockSet, bool)
}
