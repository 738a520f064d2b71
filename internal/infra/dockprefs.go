package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"howett.net/plist"

	"github.com/spacepal/spacepal/internal/domain"
)

const (
	dockPlistRelPath = "Library/Preferences/com.apple.dock.plist"

	// persistentAppsKey is the named array-of-records value inside the
	// dock preference store that holds the pinned items.
	persistentAppsKey = "persistent-apps"

	dockProcessName    = "Dock"
	dockRestartTimeout = 5 * time.Second
	dockRestartPoll    = 100 * time.Millisecond
)

// DockPlistStore implements domain.DockPrefs against the dock preference
// plist. The pinned-item array is read and overwritten wholesale; all other
// keys in the store are preserved untouched.
type DockPlistStore struct {
	path string
}

// NewDockPlistStore creates a store against the user's dock plist.
func NewDockPlistStore() (*DockPlistStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewDockPlistStoreAtPath(filepath.Join(home, dockPlistRelPath)), nil
}

// NewDockPlistStoreAtPath creates a store at a specific plist path (tests).
func NewDockPlistStoreAtPath(path string) *DockPlistStore {
	return &DockPlistStore{path: path}
}

func (s *DockPlistStore) readStore() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dock store: %w", err)
	}
	var store map[string]interface{}
	if _, err := plist.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to parse dock store: %w", err)
	}
	return store, nil
}

// ReadRawTiles returns the current pinned-item records, one opaque
// binary-plist blob per tile.
func (s *DockPlistStore) ReadRawTiles() ([][]byte, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}

	entries, _ := store[persistentAppsKey].([]interface{})
	tiles := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		raw, err := plist.Marshal(entry, plist.BinaryFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tile record: %w", err)
		}
		tiles = append(tiles, raw)
	}
	return tiles, nil
}

// WriteRawTiles replaces the pinned-item array and flushes synchronously.
// The write is atomic (temp file + rename, fsynced) so a crash never leaves
// a half-written dock store behind.
func (s *DockPlistStore) WriteRawTiles(tiles [][]byte) error {
	store, err := s.readStore()
	if err != nil {
		return err
	}

	entries := make([]interface{}, 0, len(tiles))
	for _, raw := range tiles {
		var entry interface{}
		if _, err := plist.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("failed to decode tile record: %w", err)
		}
		entries = append(entries, entry)
	}
	store[persistentAppsKey] = entries

	data, err := plist.Marshal(store, plist.BinaryFormat)
	if err != nil {
		return fmt.Errorf("failed to encode dock store: %w", err)
	}
	return s.atomicWrite(data)
}

// atomicWrite writes the plist to disk atomically (write + sync + rename).
func (s *DockPlistStore) atomicWrite(data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure DockPlistStore implements domain.DockPrefs.
var _ domain.DockPrefs = (*DockPlistStore)(nil)

// DockRestarter implements domain.DockProcess by killing the Dock and
// waiting for launchd to bring it back.
type DockRestarter struct {
	runner CommandRunner
}

// NewDockRestarter creates a dock process restarter.
func NewDockRestarter() *DockRestarter {
	return &DockRestarter{runner: &RealCommandRunner{}}
}

// NewDockRestarterWithRunner creates a restarter with an injectable command
// runner (tests).
func NewDockRestarterWithRunner(runner CommandRunner) *DockRestarter {
	return &DockRestarter{runner: runner}
}

// Restart kills the Dock process and waits for its replacement to appear.
func (r *DockRestarter) Restart(ctx context.Context) error {
	if err := r.runner.Run("killall", dockProcessName); err != nil {
		return fmt.Errorf("failed to kill dock process: %w", err)
	}

	deadline := time.Now().Add(dockRestartTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dockIsRunning() {
			return nil
		}
		time.Sleep(dockRestartPoll)
	}
	return fmt.Errorf("dock process did not come back within %s", dockRestartTimeout)
}

func dockIsRunning() bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if name == dockProcessName {
			return true
		}
	}
	return false
}

// Ensure DockRestarter implements domain.DockProcess.
var _ domain.DockProcess = (*DockRestarter)(nil)
