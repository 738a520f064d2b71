// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// SpaceDescriptor identifies a virtual desktop ("space") as announced by the
// external space-change feed. Identity is ID; Number is only used for
// ordering and display.
type SpaceDescriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// AppRule is a per-application policy mapping space membership to action
// sequences. AppBundleID identifies the target app for OS lookups; it may be
// empty only for a rule mid-creation.
type AppRule struct {
	ID          string       `json:"id"`
	AppBundleID string       `json:"appBundleId"`
	AppName     string       `json:"appName"`
	Enabled     bool         `json:"enabled"`
	Groups      []RuleGroup  `json:"groups"`
	ElseActions []ActionItem `json:"elseActions"`
}

// RuleGroup bundles "these spaces -> these actions". When the current space
// appears in several groups of one rule, the first group in slice order wins.
type RuleGroup struct {
	ID             string       `json:"id"`
	TargetSpaceIDs []string     `json:"targetSpaceIds"`
	Actions        []ActionItem `json:"actions"`
}

// ContainsSpace reports whether the group targets the given space.
func (g RuleGroup) ContainsSpace(spaceID string) bool {
	for _, id := range g.TargetSpaceIDs {
		if id == spaceID {
			return true
		}
	}
	return false
}

// DockTile is one pinned dock item. RawData holds the original dock store
// record (binary plist encoded) and is the authoritative payload written
// back to the OS; Label, BundleIdentifier and FileURL are a display-only
// projection parsed out of it on load.
type DockTile struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	BundleIdentifier string `json:"bundleIdentifier,omitempty"`
	FileURL          string `json:"fileUrl,omitempty"`
	RawData          []byte `json:"rawData"`
}

// DockSet is a named, ordered collection of dock tiles.
type DockSet struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DateCreated time.Time  `json:"dateCreated"`
	Tiles       []DockTile `json:"tiles"`
}

// SameSet reports change-detection equality: identity and name only, never
// tile content. Display-only tile edits must not count as "a different set",
// otherwise the switcher would restart the Dock for nothing.
func (s DockSet) SameSet(other DockSet) bool {
	return s.ID == other.ID && s.Name == other.Name
}

// DockConfig is the root aggregate for dock switching: the named sets, an
// optional default set, and per-space assignments.
type DockConfig struct {
	DockSets         []DockSet         `json:"dockSets"`
	DefaultDockSetID string            `json:"defaultDockSetId,omitempty"`
	SpaceAssignments map[string]string `json:"spaceAssignments,omitempty"`
}

// SetByID returns the dock set with the given id, if present.
func (c DockConfig) SetByID(id string) (DockSet, bool) {
	for _, s := range c.DockSets {
		if s.ID == id {
			return s, true
		}
	}
	return DockSet{}, false
}
