package filtering

import (
	"context"

	"github.com/spigell/mentor-ranker/internal/profile"
)

type selfFilter struct{}

// NewSelf creates a filter that removes the student from their own pool.
func NewSelf() Filter { return &selfFilter{} }

func (f *selfFilter) Name() string { return "self" }

func (f *selfFilter) Disable(string) {}

func (f *selfFilter) IsEnabled() bool { return true }

func (f *selfFilter) Validate() error { return nil }

func (f *selfFilter) Apply(_ context.Context, student profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error) {
	kept, dropped := keep(pool, func(p profile.Profile) bool {
		return p.ID() != student.ID()
	})
	return kept, stepOf(len(pool), kept, dropped), nil
}

type roleFilter struct{}

// NewRole creates a filter that keeps mentors only.
func NewRole() Filter { return &roleFilter{} }

func (f *roleFilter) Name() string { return "role" }

func (f *roleFilter) Disable(string) {}

func (f *roleFilter) IsEnabled() bool { return true }

func (f *roleFilter) Validate() error { return nil }

func (f *roleFilter) Apply(_ context.Context, _ profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error) {
	kept, dropped := keep(pool, profile.Profile.IsMentor)
	return kept, stepOf(len(pool), kept, dropped), nil
}

type duplicatesFilter struct{}

// NewDuplicates creates a filter that keeps the first occurrence of every id.
func NewDuplicates() Filter { return &duplicatesFilter{} }

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Disable(string) {}

func (f *duplicatesFilter) IsEnabled() bool { return true }

func (f *duplicatesFilter) Validate() error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, _ profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error) {
	seen := make(map[string]struct{}, len(pool))
	kept, dropped := keep(pool, func(p profile.Profile) bool {
		if _, dup := seen[p.ID()]; dup {
			return false
		}
		seen[p.ID()] = struct{}{}
		return true
	})
	return kept, stepOf(len(pool), kept, dropped), nil
}
