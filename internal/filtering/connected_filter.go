package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/profile"
)

const includeConnectedMsg = "include-connected flag is set"

// ConnectionLister returns mentors the student already has a pending or
// accepted connection with.
type ConnectionLister interface {
	ConnectedMentorIDs(ctx context.Context, studentID string) ([]string, error)
}

type connectedFilter struct {
	deps   *ConnectedDeps
	ignore bool
	reason string
}

type ConnectedDeps struct {
	Connections ConnectionLister
	Logger      *zap.Logger
}

type ConnectedConfig struct {
	Ignore bool
}

// NewConnected creates a filter that removes mentors the student is already connected with.
func NewConnected(cfg *ConnectedConfig, deps *ConnectedDeps) Filter {
	ignore := false
	if cfg != nil {
		ignore = cfg.Ignore
	}

	return &connectedFilter{
		deps:   deps,
		ignore: ignore,
	}
}

func (f *connectedFilter) Name() string { return "connected" }

func (f *connectedFilter) Disable(reason string) {
	f.ignore = true
	f.reason = reason
}

func (f *connectedFilter) IsEnabled() bool { return true }

func (f *connectedFilter) Validate() error {
	if f.ignore {
		return nil
	}
	if f.deps == nil || f.deps.Connections == nil {
		return fmt.Errorf("connection lister is required")
	}
	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

func (f *connectedFilter) Apply(ctx context.Context, student profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error) {
	initial := len(pool)
	if f.ignore {
		if f.deps != nil && f.deps.Logger != nil {
			f.deps.Logger.Debug("keeping already connected mentors", zap.String("reason", f.statusReason()))
		}
		return pool, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	ids, err := f.deps.Connections.ConnectedMentorIDs(ctx, student.ID())
	if err != nil {
		return pool, Step{}, fmt.Errorf("get connected mentors: %w", err)
	}

	connected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		connected[id] = struct{}{}
	}

	kept, dropped := keep(pool, func(p profile.Profile) bool {
		_, ok := connected[p.ID()]
		return !ok
	})
	if len(dropped) > 0 {
		f.deps.Logger.Info("excluding mentors with existing connections",
			zap.String("student_id", student.ID()),
			zap.Strings("excluded_mentors", dropped),
			zap.Int("mentors_left", len(kept)),
		)
	}

	return kept, stepOf(initial, kept, dropped), nil
}

func (f *connectedFilter) statusReason() string {
	if f.reason != "" {
		return f.reason
	}
	return includeConnectedMsg
}

func (f *connectedFilter) Status() Status {
	details := map[string]string{
		"exclude_connected": strconv.FormatBool(!f.ignore),
	}
	reason := ""
	if f.ignore {
		reason = f.statusReason()
	}
	return Status{Name: f.Name(), Enabled: true, Reason: reason, Details: details}
}
