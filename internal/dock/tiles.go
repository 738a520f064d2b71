// Package dock owns the dock configuration aggregate: named tile sets, the
// default-set pointer, and per-space assignments.
package dock

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"howett.net/plist"

	"github.com/spacepal/spacepal/internal/domain"
)

// ParseRawTile builds a DockTile from one raw dock store record. The record
// is kept verbatim in RawData; the typed fields are a best-effort projection
// and may stay empty for record shapes the model cannot interpret.
func ParseRawTile(raw []byte) domain.DockTile {
	tile := domain.DockTile{
		ID:      uuid.NewString(),
		RawData: raw,
	}

	var entry map[string]interface{}
	if _, err := plist.Unmarshal(raw, &entry); err != nil {
		return tile
	}

	tileData, ok := entry["tile-data"].(map[string]interface{})
	if !ok {
		return tile
	}
	if label, ok := tileData["file-label"].(string); ok {
		tile.Label = label
	}
	if bundleID, ok := tileData["bundle-identifier"].(string); ok {
		tile.BundleIdentifier = bundleID
	}
	if fileData, ok := tileData["file-data"].(map[string]interface{}); ok {
		if url, ok := fileData["_CFURLString"].(string); ok {
			tile.FileURL = url
		}
	}
	return tile
}

// RawTiles returns the authoritative raw records of a tile list, in order.
// Rebuilding the dock array from a parsed set must reproduce the original
// entries unchanged, including fields the model does not understand.
func RawTiles(tiles []domain.DockTile) [][]byte {
	out := make([][]byte, len(tiles))
	for i, t := range tiles {
		out[i] = t.RawData
	}
	return out
}

// NewTileFromAppPath synthesizes a tile for an application bundle on disk.
// The raw record is a minimal file-reference entry; the Dock fills in any
// remaining fields itself on the next restart.
func NewTileFromAppPath(appPath string, locator domain.AppLocator) (domain.DockTile, error) {
	label := strings.TrimSuffix(filepath.Base(appPath), ".app")

	bundleID := ""
	if locator != nil {
		id, err := locator.ResolveBundleID(appPath)
		if err == nil {
			bundleID = id
		}
	}

	tileData := map[string]interface{}{
		"file-data": map[string]interface{}{
			"_CFURLString":     appPath,
			"_CFURLStringType": 0,
		},
		"file-label": label,
		// 41 marks an application file in the dock store schema.
		"file-type": 41,
	}
	if bundleID != "" {
		tileData["bundle-identifier"] = bundleID
	}
	entry := map[string]interface{}{
		"tile-data": tileData,
		"tile-type": "file-tile",
	}

	raw, err := plist.Marshal(entry, plist.BinaryFormat)
	if err != nil {
		return domain.DockTile{}, fmt.Errorf("failed to encode tile record: %w", err)
	}

	return domain.DockTile{
		ID:               uuid.NewString(),
		Label:            label,
		BundleIdentifier: bundleID,
		FileURL:          appPath,
		RawData:          raw,
	}, nil
}
