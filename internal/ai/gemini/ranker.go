package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/ai"
	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/utils"
)

const (
	systemInstruction = "You are a mentor matching AI. Always respond with valid JSON only. " +
		"Return a JSON array of objects with integer \"index\", integer \"score\" from 0 to 100 and string \"reason\"."

	defaultTimeout      = 12 * time.Second
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

// Ranker asks Gemini to order mentor candidates for a student. Each call makes
// exactly one attempt bounded by the configured timeout.
type Ranker struct {
	generator contentGenerator
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Ranker = (*Ranker)(nil)

func NewRanker(generator contentGenerator, logger *zap.Logger, timeout time.Duration, maxLogLength int) *Ranker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ranker{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// promptProfile is what the model sees. Candidates carry their position in
// the list instead of a database id.
type promptProfile struct {
	Index          *int     `json:"index,omitempty"`
	Name           string   `json:"name"`
	Department     string   `json:"department,omitempty"`
	Skills         []string `json:"skills"`
	Interests      []string `json:"interests"`
	Bio            string   `json:"bio,omitempty"`
	Company        string   `json:"company,omitempty"`
	JobTitle       string   `json:"jobTitle,omitempty"`
	Location       string   `json:"location,omitempty"`
	GraduationYear int      `json:"graduationYear,omitempty"`
}

func (r *Ranker) Rank(ctx context.Context, student profile.Profile, candidates []profile.Profile, maxResults int) (ai.Ranking, error) {
	if r == nil || r.generator == nil {
		return ai.Ranking{}, fmt.Errorf("%w: gemini ranker is not initialized", ai.ErrConfiguration)
	}
	if len(candidates) == 0 {
		return ai.Ranking{Matches: []profile.Match{}}, nil
	}

	prompt, err := buildPrompt(student, candidates, maxResults)
	if err != nil {
		return ai.Ranking{}, err
	}

	r.logger.Debug("gemini rank request",
		zap.String("student_id", student.ID()),
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.generate(callCtx, prompt)
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return ai.Ranking{}, ai.Malformed(raw, "empty body")
		}
		return ai.Ranking{}, ai.Classify(callCtx, err)
	}

	r.logger.Debug("gemini rank response",
		zap.String("student_id", student.ID()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	entries, err := ai.ParseRanking(raw, len(candidates))
	if err != nil {
		return ai.Ranking{}, err
	}

	matches := make([]profile.Match, 0, len(entries))
	for _, entry := range entries {
		matches = append(matches, profile.Match{
			Mentor: candidates[entry.Index],
			Score:  entry.Score,
			Reason: entry.Reason,
		})
	}

	return ai.Ranking{Matches: matches, Raw: raw}, nil
}

type generation struct {
	raw string
	err error
}

// generate abandons the call once callCtx is done, even if the generator
// itself ignores cancellation.
func (r *Ranker) generate(callCtx context.Context, prompt string) (string, error) {
	done := make(chan generation, 1)
	go func() {
		raw, err := r.generator.GenerateContent(callCtx, systemInstruction, prompt)
		done <- generation{raw: raw, err: err}
	}()

	select {
	case <-callCtx.Done():
		return "", callCtx.Err()
	case res := <-done:
		return res.raw, res.err
	}
}

func buildPrompt(student profile.Profile, candidates []profile.Profile, maxResults int) (string, error) {
	studentJSON, err := json.MarshalIndent(toPromptProfile(student, nil), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal student payload: %w", err)
	}

	payload := make([]promptProfile, 0, len(candidates))
	for i, candidate := range candidates {
		payload = append(payload, toPromptProfile(candidate, &i))
	}
	candidatesJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates payload: %w", err)
	}

	resultCount := len(candidates)
	if maxResults > 0 && maxResults < resultCount {
		resultCount = maxResults
	}

	prompt := strings.NewReplacer(
		"{{RESULT_COUNT}}", strconv.Itoa(resultCount),
		"{{MAX_INDEX}}", strconv.Itoa(len(candidates)-1),
		"{{CANDIDATE_COUNT}}", strconv.Itoa(len(candidates)),
		"{{STUDENT_JSON}}", string(studentJSON),
		"{{CANDIDATES_JSON}}", string(candidatesJSON),
	).Replace(promptTemplate)

	return prompt, nil
}

func toPromptProfile(p profile.Profile, index *int) promptProfile {
	out := promptProfile{
		Name:       p.FullName,
		Department: p.Department,
		Skills:     p.Skills.Values(),
		Interests:  p.Interests.Values(),
		Bio:        strings.TrimSpace(p.Bio),
		Company:    p.Company.OrElse(""),
		JobTitle:   p.JobTitle.OrElse(""),
		Location:   p.Location.OrElse(""),
	}
	if index != nil {
		i := *index
		out.Index = &i
	}
	if year, ok := p.GraduationYear.Get(); ok {
		out.GraduationYear = year
	}
	return out
}
