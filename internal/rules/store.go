// Package rules holds the persisted automation rules and derived sort views.
package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// PrefKey is the fixed key the rule collection is persisted under.
const PrefKey = "rules"

// noSpaceSentinel sorts rules that reference no space after every real
// space number.
const noSpaceSentinel = 1 << 30

// Store owns the ordered, mutable rule collection. Every mutation persists
// the full collection (full-replace semantics) and fires the change hook.
// Single-writer, multi-reader within one process.
type Store struct {
	mu     sync.RWMutex
	rules  []domain.AppRule
	prefs  domain.PrefStore
	logger *zap.Logger

	onChange func()
}

// NewStore loads the rule collection from the preference store. Corrupt or
// missing data falls back to an empty collection, never an error.
func NewStore(prefs domain.PrefStore, logger *zap.Logger) *Store {
	s := &Store{prefs: prefs, logger: logger}
	s.load()
	return s
}

func (s *Store) load() {
	data, ok, err := s.prefs.Get(PrefKey)
	if err != nil || !ok {
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to read rules, starting empty", zap.Error(err))
		}
		return
	}
	var rules []domain.AppRule
	if err := json.Unmarshal(data, &rules); err != nil {
		if s.logger != nil {
			s.logger.Warn("corrupt rule data, starting empty", zap.Error(err))
		}
		return
	}
	s.rules = rules
}

// SetChangeHook registers a callback fired after every persisted mutation.
// The rule engine uses it to re-evaluate against the current space so edits
// take effect without waiting for the next space change.
func (s *Store) SetChangeHook(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Rules returns the rules in store order.
func (s *Store) Rules() []domain.AppRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AppRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// RuleByID returns the rule with the given id, if present.
func (s *Store) RuleByID(id string) (domain.AppRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r, true
		}
	}
	return domain.AppRule{}, false
}

// Add appends a rule and persists.
func (s *Store) Add(rule domain.AppRule) error {
	s.mu.Lock()
	s.rules = append(s.rules, rule)
	err := s.saveLocked()
	hook := s.onChange
	s.mu.Unlock()

	s.fireHook(hook, err)
	return err
}

// Update replaces the rule with a matching id and persists. Unknown ids are
// ignored.
func (s *Store) Update(rule domain.AppRule) error {
	s.mu.Lock()
	for i := range s.rules {
		if s.rules[i].ID == rule.ID {
			s.rules[i] = rule
			break
		}
	}
	err := s.saveLocked()
	hook := s.onChange
	s.mu.Unlock()

	s.fireHook(hook, err)
	return err
}

// Delete removes the rule with the given id and persists.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	kept := s.rules[:0]
	for _, r := range s.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.rules = kept
	err := s.saveLocked()
	hook := s.onChange
	s.mu.Unlock()

	s.fireHook(hook, err)
	return err
}

func (s *Store) fireHook(hook func(), saveErr error) {
	if hook != nil && saveErr == nil {
		hook()
	}
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := s.prefs.Set(PrefKey, data); err != nil {
		return fmt.Errorf("failed to persist rules: %w", err)
	}
	return nil
}

// SortedByName returns the rules sorted case-insensitively by app name,
// ascending. Pure projection, never persisted.
func (s *Store) SortedByName() []domain.AppRule {
	out := s.Rules()
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].AppName) < strings.ToLower(out[j].AppName)
	})
	return out
}

// SortedBySpace returns the rules sorted ascending by the lowest space
// number referenced by any of the rule's groups. Rules referencing no known
// space sort last; ties break by app name ascending.
func (s *Store) SortedBySpace(spaces []domain.SpaceDescriptor) []domain.AppRule {
	numbers := make(map[string]int, len(spaces))
	for _, sp := range spaces {
		numbers[sp.ID] = sp.Number
	}

	out := s.Rules()
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := lowestSpaceNumber(out[i], numbers), lowestSpaceNumber(out[j], numbers)
		if ni != nj {
			return ni < nj
		}
		return strings.ToLower(out[i].AppName) < strings.ToLower(out[j].AppName)
	})
	return out
}

func lowestSpaceNumber(rule domain.AppRule, numbers map[string]int) int {
	lowest := noSpaceSentinel
	for _, g := range rule.Groups {
		for _, id := range g.TargetSpaceIDs {
			if n, ok := numbers[id]; ok && n < lowest {
				lowest = n
			}
		}
	}
	return lowest
}

// Ensure Store satisfies the engine's read view.
var _ domain.RuleSource = (*Store)(nil)
