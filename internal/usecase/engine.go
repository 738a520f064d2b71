package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// ActionRunner abstracts the window action executor for the engine.
type ActionRunner interface {
	Execute(ctx context.Context, rule domain.AppRule, actions []domain.ActionItem) error
}

// RuleEngine evaluates every enabled rule against each space change. Events
// queue in arrival order and a single worker drains them, so a sequence of
// changes A, B, C is applied as A, then B, then C - no debounce, no
// skipping - while the event source never blocks on action settle delays.
type RuleEngine struct {
	rules   domain.RuleSource
	runner  ActionRunner
	current func() (string, bool)
	logger  *zap.Logger

	queue chan string
}

// NewRuleEngine creates a rule engine. current reports the registry's
// current space id for re-evaluation after rule mutations.
func NewRuleEngine(
	rules domain.RuleSource,
	runner ActionRunner,
	current func() (string, bool),
	logger *zap.Logger,
) *RuleEngine {
	return &RuleEngine{
		rules:   rules,
		runner:  runner,
		current: current,
		logger:  logger,
		queue:   make(chan string, 64),
	}
}

// Run drains the evaluation queue until the context is canceled.
func (e *RuleEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case spaceID := <-e.queue:
			e.evaluate(ctx, spaceID)
		}
	}
}

// HandleSpaceChange enqueues an evaluation for the new current space.
// Intended as a registry subscription callback.
func (e *RuleEngine) HandleSpaceChange(space domain.SpaceDescriptor) {
	e.queue <- space.ID
}

// Reevaluate re-runs all rules against the current space, so a newly added
// or edited rule takes effect without waiting for the next space change.
// Intended as the rule store's change hook.
func (e *RuleEngine) Reevaluate() {
	if e.current == nil {
		return
	}
	if spaceID, ok := e.current(); ok {
		e.queue <- spaceID
	}
}

func (e *RuleEngine) evaluate(ctx context.Context, spaceID string) {
	for _, rule := range e.rules.Rules() {
		if !rule.Enabled {
			continue
		}

		actions := rule.ElseActions
		for _, group := range rule.Groups {
			// First matching group in list order wins; overlapping space
			// assignments resolve by position, never by newest edit.
			if group.ContainsSpace(spaceID) {
				actions = group.Actions
				break
			}
		}
		if len(actions) == 0 {
			continue
		}

		// Failures are isolated per rule.
		if err := e.runner.Execute(ctx, rule, actions); err != nil {
			if e.logger != nil {
				e.logger.Warn("rule execution failed",
					zap.String("rule_id", rule.ID),
					zap.String("app", rule.AppName),
					zap.String("space_id", spaceID),
					zap.Error(err))
			}
		}
	}
}
