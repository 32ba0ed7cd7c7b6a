package ranking

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/mentor-ranker/internal/ai"
	"github.com/spigell/mentor-ranker/internal/ai/gemini"
	"github.com/spigell/mentor-ranker/internal/profile"
)

type stubReasoner struct {
	mu      sync.Mutex
	calls   int
	matches func(candidates []profile.Profile) []profile.Match
	raw     string
	err     error
	panics  bool
}

func (s *stubReasoner) Rank(_ context.Context, _ profile.Profile, candidates []profile.Profile, _ int) (ai.Ranking, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return ai.Ranking{}, s.err
	}
	return ai.Ranking{Matches: s.matches(candidates), Raw: s.raw}, nil
}

type stubGenerator struct {
	response string
}

func (s *stubGenerator) GenerateContent(context.Context, string, string) (string, error) {
	return s.response, nil
}

type recorded struct {
	rankings  []string
	reasoning []string
}

func (r *recorded) ObserveRanking(source string) { r.rankings = append(r.rankings, source) }

func (r *recorded) ObserveReasoning(kind string, _ time.Duration) {
	r.reasoning = append(r.reasoning, kind)
}

func mustProfile(t *testing.T, id string, role profile.Role, details profile.Details) profile.Profile {
	t.Helper()
	p, err := profile.New(id, role, details)
	if err != nil {
		t.Fatalf("profile.New(%q): %v", id, err)
	}
	return p
}

func mentor(t *testing.T, id string, details profile.Details) profile.Profile {
	t.Helper()
	return mustProfile(t, id, profile.RoleMentor, details)
}

// scenario returns the student plus mentors A (strong heuristic match) and B (weak).
func scenario(t *testing.T) (profile.Profile, []profile.Profile) {
	t.Helper()
	student := mustProfile(t, "student", profile.RoleStudent, profile.Details{
		FullName:   "Student",
		Department: "CS",
		Skills:     profile.NewTags("Go", "SQL"),
	})
	return student, []profile.Profile{
		mentor(t, "A", profile.Details{FullName: "A", Department: "CS", Skills: profile.NewTags("Go", "SQL")}),
		mentor(t, "B", profile.Details{FullName: "B", Department: "Art"}),
	}
}

func matchIDs(matches []profile.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Mentor.ID())
	}
	return out
}

func ordered(ids ...string) func([]profile.Profile) []profile.Match {
	return func(candidates []profile.Profile) []profile.Match {
		byID := make(map[string]profile.Profile, len(candidates))
		for _, c := range candidates {
			byID[c.ID()] = c
		}
		out := make([]profile.Match, 0, len(ids))
		for i, id := range ids {
			out = append(out, profile.Match{Mentor: byID[id], Score: 90 - i, Reason: "ai"})
		}
		return out
	}
}

func newOrchestrator(t *testing.T, reasoner ai.Ranker, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(reasoner, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestEmptyPoolSkipsReasoning(t *testing.T) {
	student, _ := scenario(t)
	reasoner := &stubReasoner{matches: ordered()}
	rec := &recorded{}
	o := newOrchestrator(t, reasoner, WithRecorder(rec))

	pools := map[string][]profile.Profile{
		"nil":          nil,
		"only self":    {student},
		"only student": {mustProfile(t, "other", profile.RoleStudent, profile.Details{})},
	}
	for name, pool := range pools {
		t.Run(name, func(t *testing.T) {
			res := o.RankMentors(context.Background(), Request{Student: student, Candidates: pool, MaxResults: 5})
			if res.Source != SourceEmpty || res.Matches == nil || len(res.Matches) != 0 {
				t.Fatalf("expected empty result, got %+v", res)
			}
		})
	}

	if reasoner.calls != 0 {
		t.Fatalf("expected no reasoning calls, got %d", reasoner.calls)
	}
	if len(rec.reasoning) != 0 {
		t.Fatalf("expected no reasoning observations, got %v", rec.reasoning)
	}
}

func TestFallbackOnReasoningFailure(t *testing.T) {
	student, candidates := scenario(t)

	tests := []struct {
		name string
		err  error
		kind string
	}{
		{name: "timeout", err: ai.Classify(context.Background(), context.DeadlineExceeded), kind: "timeout"},
		{name: "unavailable", err: ai.Unavailable(errors.New("503")), kind: "unavailable"},
		{name: "malformed", err: ai.Malformed("oops", "not json"), kind: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			rec := &recorded{}
			reasoner := &stubReasoner{err: tt.err}
			o := newOrchestrator(t, reasoner, WithLogger(zap.New(core)), WithRecorder(rec))

			res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})

			if res.Source != SourceHeuristic {
				t.Fatalf("expected heuristic source, got %s", res.Source)
			}
			if got := matchIDs(res.Matches); !reflect.DeepEqual(got, []string{"A", "B"}) {
				t.Fatalf("unexpected order: %v", got)
			}
			if res.Matches[0].Score < 52 || res.Matches[1].Score != 10 {
				t.Fatalf("expected heuristic scores, got %+v", res.Matches)
			}
			if reasoner.calls != 1 {
				t.Fatalf("expected one reasoning call, got %d", reasoner.calls)
			}

			entries := logs.FilterMessage("reasoning ranking failed, falling back to heuristic").All()
			if len(entries) != 1 || entries[0].ContextMap()["kind"] != tt.kind {
				t.Fatalf("expected one warning with kind %q, got %+v", tt.kind, entries)
			}
			if !reflect.DeepEqual(rec.reasoning, []string{tt.kind}) || !reflect.DeepEqual(rec.rankings, []string{"heuristic"}) {
				t.Fatalf("unexpected observations: %+v", rec)
			}
		})
	}
}

func TestOutOfRangeIndexFallsBackToHeuristicScores(t *testing.T) {
	student, candidates := scenario(t)
	generator := &stubGenerator{response: `[{"index": 0, "score": 50, "reason": "ok"}, {"index": 99, "score": 80, "reason": "x"}]`}
	o := newOrchestrator(t, gemini.NewRanker(generator, zap.NewNop(), time.Second, 0))

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})

	if res.Source != SourceHeuristic {
		t.Fatalf("expected heuristic source, got %s", res.Source)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Matches))
	}
	for _, m := range res.Matches {
		if m.Score == 80 || m.Score == 50 {
			t.Fatalf("reasoning scores leaked into fallback: %+v", res.Matches)
		}
	}
	if res.Matches[0].Reason != "Shared department and 2 overlapping skills" {
		t.Fatalf("unexpected reason: %q", res.Matches[0].Reason)
	}
	if res.Matches[1].Reason != "General compatibility" {
		t.Fatalf("unexpected reason: %q", res.Matches[1].Reason)
	}
}

func TestRejectedResponseIsLogged(t *testing.T) {
	student, candidates := scenario(t)
	raw := `[{"index": 0, "score": 50, "reason": "ok"}, {"index": 99, "score": 80, "reason": "REJECTED-ANSWER ` + strings.Repeat("x", 80) + `"}]`
	generator := &stubGenerator{response: raw}
	core, logs := observer.New(zapcore.InfoLevel)
	o := newOrchestrator(t, gemini.NewRanker(generator, zap.NewNop(), time.Second, 0),
		WithLogger(zap.New(core)),
		WithMaxLogLength(100),
	)

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})
	if res.Source != SourceHeuristic {
		t.Fatalf("expected fallback, got %s", res.Source)
	}

	entries := logs.FilterMessage("reasoning ranking failed, falling back to heuristic").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	preview, _ := ctx["response_preview"].(string)
	if !strings.Contains(preview, "REJECTED-ANSWER") || !strings.HasSuffix(preview, "...") {
		t.Fatalf("expected truncated rejected payload in warning, got %q", preview)
	}
	if ctx["response_length"] != int64(len(raw)) {
		t.Fatalf("expected response_length %d, got %v", len(raw), ctx["response_length"])
	}
}

func TestTransportFailureHasNoPreview(t *testing.T) {
	student, candidates := scenario(t)
	core, logs := observer.New(zapcore.WarnLevel)
	o := newOrchestrator(t, &stubReasoner{err: ai.Unavailable(errors.New("503"))}, WithLogger(zap.New(core)))

	o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})

	entries := logs.FilterMessage("reasoning ranking failed, falling back to heuristic").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["response_preview"]; ok {
		t.Fatal("no payload exists for a transport failure")
	}
}

func TestReasoningResultIsVerified(t *testing.T) {
	student, candidates := scenario(t)
	ghost := mentor(t, "ghost", profile.Details{FullName: "Ghost"})

	tests := []struct {
		name    string
		matches func([]profile.Profile) []profile.Match
	}{
		{
			name: "fabricated id",
			matches: func(c []profile.Profile) []profile.Match {
				return []profile.Match{{Mentor: c[0], Score: 90}, {Mentor: ghost, Score: 95}}
			},
		},
		{
			name: "duplicate id",
			matches: func(c []profile.Profile) []profile.Match {
				return []profile.Match{{Mentor: c[1], Score: 90}, {Mentor: c[1], Score: 80}}
			},
		},
		{
			name:    "incomplete",
			matches: ordered("B"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			raw := `[{"index": 1, "score": 90, "reason": "answer of ` + tt.name + `"}]`
			o := newOrchestrator(t, &stubReasoner{matches: tt.matches, raw: raw}, WithLogger(zap.New(core)))

			res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})
			if res.Source != SourceHeuristic {
				t.Fatalf("expected fallback, got %s", res.Source)
			}
			for _, id := range matchIDs(res.Matches) {
				if id == "ghost" {
					t.Fatal("fabricated mentor returned")
				}
			}

			entries := logs.FilterMessage("reasoning ranking failed, falling back to heuristic").All()
			if len(entries) != 1 || entries[0].ContextMap()["response_preview"] != raw {
				t.Fatalf("expected rejected answer in the warning, got %+v", entries)
			}
		})
	}
}

func TestReasoningResultIsSortedClampedAndTrimmed(t *testing.T) {
	student := mustProfile(t, "student", profile.RoleStudent, profile.Details{})
	candidates := []profile.Profile{
		mentor(t, "m0", profile.Details{}),
		mentor(t, "m1", profile.Details{}),
		mentor(t, "m2", profile.Details{}),
		mentor(t, "m3", profile.Details{}),
	}
	reasoner := &stubReasoner{matches: func(c []profile.Profile) []profile.Match {
		return []profile.Match{
			{Mentor: c[3], Score: 70, Reason: "tie late"},
			{Mentor: c[0], Score: -5, Reason: "low"},
			{Mentor: c[2], Score: 150, Reason: "high"},
			{Mentor: c[1], Score: 70, Reason: "tie early"},
		}
	}}
	o := newOrchestrator(t, reasoner)

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 3})

	if res.Source != SourceReasoning {
		t.Fatalf("expected reasoning source, got %s", res.Source)
	}
	if got := matchIDs(res.Matches); !reflect.DeepEqual(got, []string{"m2", "m1", "m3"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if res.Matches[0].Score != 100 {
		t.Fatalf("expected clamp to 100, got %d", res.Matches[0].Score)
	}

	all := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 10})
	if last := all.Matches[len(all.Matches)-1]; last.Mentor.ID() != "m0" || last.Score != 0 {
		t.Fatalf("expected clamp to 0 for m0, got %+v", last)
	}
}

func TestShortlistLength(t *testing.T) {
	student := mustProfile(t, "student", profile.RoleStudent, profile.Details{})
	pool := make([]profile.Profile, 0, 60)
	for i := range 60 {
		pool = append(pool, mentor(t, "m"+string(rune('A'+i%26))+string(rune('a'+i/26)), profile.Details{}))
	}
	o := newOrchestrator(t, nil, WithHeuristicOnly())

	tests := []struct {
		max, n, want int
	}{
		{max: 5, n: 3, want: 3},
		{max: 5, n: 8, want: 5},
		{max: 0, n: 8, want: DefaultMaxResults},
		{max: -2, n: 2, want: 2},
		{max: 500, n: 60, want: MaxResultsLimit},
	}

	for _, tt := range tests {
		res := o.RankMentors(context.Background(), Request{Student: student, Candidates: pool[:tt.n], MaxResults: tt.max})
		if len(res.Matches) != tt.want {
			t.Fatalf("max=%d n=%d: expected %d matches, got %d", tt.max, tt.n, tt.want, len(res.Matches))
		}
	}
}

func TestHeuristicTiesKeepInputOrder(t *testing.T) {
	student := mustProfile(t, "student", profile.RoleStudent, profile.Details{Department: "CS"})
	candidates := []profile.Profile{
		mentor(t, "z", profile.Details{}),
		mentor(t, "a", profile.Details{Department: "CS"}),
		mentor(t, "m", profile.Details{}),
		mentor(t, "b", profile.Details{}),
	}
	o := newOrchestrator(t, nil, WithHeuristicOnly())

	first := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 10})
	if got := matchIDs(first.Matches); !reflect.DeepEqual(got, []string{"a", "z", "m", "b"}) {
		t.Fatalf("unexpected order: %v", got)
	}

	second := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 10})
	if !reflect.DeepEqual(first, second) {
		t.Fatal("heuristic ranking is not deterministic")
	}
}

func TestHeuristicOnlyNeverCallsReasoner(t *testing.T) {
	student, candidates := scenario(t)
	reasoner := &stubReasoner{matches: ordered("B", "A")}
	o := newOrchestrator(t, reasoner, WithHeuristicOnly())

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})
	if res.Source != SourceHeuristic || reasoner.calls != 0 {
		t.Fatalf("expected heuristic without calls, got %s after %d calls", res.Source, reasoner.calls)
	}
}

func TestReasonerPanicFallsBack(t *testing.T) {
	student, candidates := scenario(t)
	rec := &recorded{}
	o := newOrchestrator(t, &stubReasoner{panics: true}, WithRecorder(rec))

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})
	if res.Source != SourceHeuristic {
		t.Fatalf("expected fallback, got %s", res.Source)
	}
	if !reflect.DeepEqual(rec.reasoning, []string{"unavailable"}) {
		t.Fatalf("unexpected reasoning observations: %v", rec.reasoning)
	}
}

func TestReasoningSuccessKeepsServiceScores(t *testing.T) {
	student, candidates := scenario(t)
	rec := &recorded{}
	o := newOrchestrator(t, &stubReasoner{matches: ordered("B", "A")}, WithRecorder(rec))

	res := o.RankMentors(context.Background(), Request{Student: student, Candidates: candidates, MaxResults: 5})
	if res.Source != SourceReasoning {
		t.Fatalf("expected reasoning source, got %s", res.Source)
	}
	if got := matchIDs(res.Matches); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if res.Matches[0].Score != 90 || res.Matches[0].Reason != "ai" {
		t.Fatalf("unexpected first match: %+v", res.Matches[0])
	}
	if !reflect.DeepEqual(rec.reasoning, []string{"none"}) || !reflect.DeepEqual(rec.rankings, []string{"reasoning"}) {
		t.Fatalf("unexpected observations: %+v", rec)
	}
}

func TestNewRequiresReasonerOrHeuristicOnly(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ai.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := New(nil, WithHeuristicOnly()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClampMaxResults(t *testing.T) {
	for in, want := range map[int]int{-1: 5, 0: 5, 1: 1, 7: 7, 50: 50, 51: 50} {
		if got := ClampMaxResults(in); got != want {
			t.Fatalf("ClampMaxResults(%d) = %d, want %d", in, got, want)
		}
	}
}
