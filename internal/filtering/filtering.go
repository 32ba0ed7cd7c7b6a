package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/profile"
)

// Filter represents a single step that narrows the candidate mentor pool.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, student profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Base returns the filters every ranking applies regardless of configuration.
func Base() []Filter {
	return []Filter{NewSelf(), NewRole(), NewDuplicates()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. Candidate order is preserved.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, student profile.Profile, pool []profile.Profile) ([]profile.Profile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, student, pool)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.String("student_id", student.ID()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		pool = next
	}

	return pool, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the candidates accepted by fn and the ids of the dropped ones.
func keep(pool []profile.Profile, fn func(profile.Profile) bool) ([]profile.Profile, []string) {
	kept := make([]profile.Profile, 0, len(pool))
	var dropped []string
	for _, p := range pool {
		if fn(p) {
			kept = append(kept, p)
			continue
		}
		dropped = append(dropped, p.ID())
	}
	return kept, dropped
}

func stepOf(initial int, kept []profile.Profile, dropped []string) Step {
	return Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}
}
