// Package ranking turns a student and a pool of candidate mentors into a
// bounded shortlist. The reasoning service is asked first; whenever its answer
// is missing, late or untrustworthy the deterministic heuristic is used
// instead, so ranking itself never fails.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/ai"
	"github.com/spigell/mentor-ranker/internal/filtering"
	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/scoring"
	"github.com/spigell/mentor-ranker/internal/utils"
)

const (
	DefaultMaxResults = 5
	MaxResultsLimit   = 50

	defaultMaxLogLength = 200
)

// Source tells which strategy produced a Result.
type Source string

const (
	SourceReasoning Source = "reasoning"
	SourceHeuristic Source = "heuristic"
	SourceEmpty     Source = "empty"
)

type Request struct {
	Student    profile.Profile
	Candidates []profile.Profile
	MaxResults int
}

// Result is ordered by score, highest first. Ties keep the candidate order of
// the request.
type Result struct {
	Matches []profile.Match
	Source  Source
}

// Recorder receives ranking outcomes. kind is "none" for a successful
// reasoning call and an ai.Kind label otherwise.
type Recorder interface {
	ObserveRanking(source string)
	ObserveReasoning(kind string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRanking(string) {}

func (nopRecorder) ObserveReasoning(string, time.Duration) {}

type Orchestrator struct {
	reasoner      ai.Ranker
	heuristicOnly bool
	logger        *zap.Logger
	recorder      Recorder
	maxLogLen     int
}

type Option func(*Orchestrator)

// WithHeuristicOnly skips the reasoning service entirely.
func WithHeuristicOnly() Option {
	return func(o *Orchestrator) { o.heuristicOnly = true }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxLogLength bounds the preview of rejected reasoning responses in logs.
func WithMaxLogLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxLogLen = n
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// New creates an Orchestrator. A nil reasoner is a configuration error unless
// WithHeuristicOnly is given.
func New(reasoner ai.Ranker, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		reasoner: reasoner,
		logger:    zap.NewNop(),
		recorder:  nopRecorder{},
		maxLogLen: defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.reasoner == nil && !o.heuristicOnly {
		return nil, fmt.Errorf("%w: reasoning client is required unless heuristic-only mode is enabled", ai.ErrConfiguration)
	}

	return o, nil
}

// ClampMaxResults applies the default to non-positive values and caps the rest.
func ClampMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	return min(n, MaxResultsLimit)
}

// RankMentors never returns an error: reasoning failures are logged and the
// heuristic result is returned instead.
func (o *Orchestrator) RankMentors(ctx context.Context, req Request) Result {
	limit := ClampMaxResults(req.MaxResults)
	log := o.logger.With(zap.String("student_id", req.Student.ID()))

	candidates, err := filtering.Run(ctx, o.logger, filtering.Base(), req.Student, req.Candidates)
	if err != nil {
		// Base filters have no dependencies; keep going with the raw pool.
		log.Warn("candidate sanitizing failed", zap.Error(err))
		candidates = req.Candidates
	}

	if len(candidates) == 0 {
		o.recorder.ObserveRanking(string(SourceEmpty))
		return Result{Matches: []profile.Match{}, Source: SourceEmpty}
	}

	if o.reasoner != nil && !o.heuristicOnly {
		matches, err := o.reason(ctx, req.Student, candidates, limit)
		if err == nil {
			o.recorder.ObserveRanking(string(SourceReasoning))
			log.Debug("ranked by reasoning service",
				zap.Int("candidates", len(candidates)),
				zap.Int("matches", len(matches)),
			)
			return Result{Matches: matches, Source: SourceReasoning}
		}

		fields := []zap.Field{
			zap.String("kind", ai.Kind(err)),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		}
		var malformed *ai.MalformedResponseError
		if errors.As(err, &malformed) {
			fields = append(fields,
				zap.Int("response_length", utf8.RuneCountInString(malformed.Raw)),
				zap.String("response_preview", utils.TruncateForLog(malformed.Raw, o.maxLogLen)),
			)
		}
		log.Warn("reasoning ranking failed, falling back to heuristic", fields...)
	}

	o.recorder.ObserveRanking(string(SourceHeuristic))
	return Result{Matches: Heuristic(req.Student, candidates, limit), Source: SourceHeuristic}
}

func (o *Orchestrator) reason(ctx context.Context, student profile.Profile, candidates []profile.Profile, limit int) (matches []profile.Match, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			matches, err = nil, ai.Unavailable(fmt.Errorf("reasoning client panic: %v", r))
		}
		o.recorder.ObserveReasoning(ai.Kind(err), time.Since(start))
	}()

	answer, err := o.reasoner.Rank(ctx, student, candidates, limit)
	if err != nil {
		return nil, err
	}

	return verify(answer, candidates, limit)
}

// verify checks a reasoning answer against the pool that was sent and returns
// it sorted and trimmed. Profiles are taken from the pool, not from the answer.
func verify(answer ai.Ranking, candidates []profile.Profile, limit int) ([]profile.Match, error) {
	position := make(map[string]int, len(candidates))
	for i, c := range candidates {
		position[c.ID()] = i
	}

	seen := make(map[string]struct{}, len(answer.Matches))
	out := make([]ranked, 0, len(answer.Matches))
	for _, m := range answer.Matches {
		id := m.Mentor.ID()
		pos, ok := position[id]
		if !ok {
			return nil, ai.Malformed(answer.Raw, fmt.Sprintf("mentor %q is not in the candidate pool", id))
		}
		if _, dup := seen[id]; dup {
			return nil, ai.Malformed(answer.Raw, fmt.Sprintf("mentor %q ranked twice", id))
		}
		seen[id] = struct{}{}

		out = append(out, ranked{
			Match: profile.Match{
				Mentor: candidates[pos],
				Score:  scoring.Clamp(m.Score),
				Reason: m.Reason,
			},
			position: pos,
		})
	}

	if want := min(limit, len(candidates)); len(out) < want {
		return nil, ai.Malformed(answer.Raw, fmt.Sprintf("expected at least %d matches, got %d", want, len(out)))
	}

	return finalize(out, limit), nil
}

// Heuristic scores every candidate with the scoring engine and returns the
// top limit matches.
func Heuristic(student profile.Profile, candidates []profile.Profile, limit int) []profile.Match {
	out := make([]ranked, 0, len(candidates))
	for i, c := range candidates {
		score, reason := scoring.Score(student, c)
		out = append(out, ranked{
			Match:    profile.Match{Mentor: c, Score: scoring.Clamp(score), Reason: reason},
			position: i,
		})
	}
	return finalize(out, limit)
}

type ranked struct {
	profile.Match
	position int
}

func finalize(items []ranked, limit int) []profile.Match {
	slices.SortStableFunc(items, func(a, b ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	matches := make([]profile.Match, 0, len(items))
	for _, item := range items {
		matches = append(matches, item.Match)
	}
	return matches
}
