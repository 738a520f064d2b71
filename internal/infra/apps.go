package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"howett.net/plist"

	"github.com/spacepal/spacepal/internal/domain"
)

// GopsutilAppLocator implements domain.AppLocator using a process scan.
type GopsutilAppLocator struct{}

// NewAppLocator creates a process-scan based app locator.
func NewAppLocator() *GopsutilAppLocator {
	return &GopsutilAppLocator{}
}

// IsRunning reports whether the target application has a running process.
// Matches on the display name first; falls back to the last component of
// the bundle identifier (com.apple.Safari -> Safari) when the name differs
// from the process name.
func (l *GopsutilAppLocator) IsRunning(bundleID, appName string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}

	candidates := make([]string, 0, 2)
	if appName != "" {
		candidates = append(candidates, strings.ToLower(appName))
	}
	if idx := strings.LastIndex(bundleID, "."); idx >= 0 && idx < len(bundleID)-1 {
		candidates = append(candidates, strings.ToLower(bundleID[idx+1:]))
	}
	if len(candidates) == 0 {
		return false
	}

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		lower := strings.ToLower(name)
		for _, c := range candidates {
			if lower == c {
				return true
			}
		}
	}
	return false
}

// ResolveBundleID reads CFBundleIdentifier from the app bundle's Info.plist.
// Returns "" without error when the bundle has none.
func (l *GopsutilAppLocator) ResolveBundleID(appPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(appPath, "Contents", "Info.plist"))
	if err != nil {
		return "", fmt.Errorf("failed to read Info.plist: %w", err)
	}

	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("failed to parse Info.plist: %w", err)
	}

	bundleID, _ := info["CFBundleIdentifier"].(string)
	return bundleID, nil
}

// Ensure GopsutilAppLocator implements domain.AppLocator.
var _ domain.AppLocator = (*GopsutilAppLocator)(nil)
