package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/filtering"
	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/ranking"
	"github.com/spigell/mentor-ranker/internal/store"
)

// DefaultConnectionMessage is sent when the student leaves the message empty.
const DefaultConnectionMessage = "I'd love to connect with you and learn from your experience!"

var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrMentorNotFound    = errors.New("mentor not found")
	ErrInvalidConnection = errors.New("invalid connection request")
)

type Ranker interface {
	RankMentors(ctx context.Context, req ranking.Request) ranking.Result
}

// Shortlist is the answer to a ranking request.
type Shortlist struct {
	Student profile.Profile
	Matches []profile.Match
	Source  ranking.Source
}

type Config struct {
	// IncludeConnected keeps mentors the student already asked or is connected with.
	IncludeConnected bool
	ExcludeFile      string
}

type Service struct {
	profiles    store.ProfileStore
	connections store.ConnectionRecorder
	ranker      Ranker
	filters     []filtering.Filter
	logger      *zap.Logger
}

func New(profiles store.ProfileStore, connections store.ConnectionRecorder, ranker Ranker, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	filters := []filtering.Filter{
		filtering.NewConnected(
			&filtering.ConnectedConfig{Ignore: cfg.IncludeConnected},
			&filtering.ConnectedDeps{Connections: connections, Logger: logger},
		),
		filtering.NewExcludeFile(cfg.ExcludeFile),
	}

	return &Service{
		profiles:    profiles,
		connections: connections,
		ranker:      ranker,
		filters:     filters,
		logger:      logger,
	}
}

// Filters reports the configured candidate filters.
func (s *Service) Filters() []filtering.Status {
	return filtering.Describe(s.filters)
}

// RankMentors builds the candidate pool for studentID and ranks it. A nil or
// non-positive maxResults means the default of 5; values above 50 are capped.
func (s *Service) RankMentors(ctx context.Context, studentID string, maxResults *int) (Shortlist, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return Shortlist{}, err
	}

	mentors, err := s.profiles.MentorsExcluding(ctx, student.ID())
	if err != nil {
		return Shortlist{}, fmt.Errorf("list mentors: %w", err)
	}

	pool, err := filtering.Run(ctx, s.logger, s.filters, student, mentors)
	if err != nil {
		return Shortlist{}, fmt.Errorf("filter mentors: %w", err)
	}

	limit := ranking.DefaultMaxResults
	if maxResults != nil {
		limit = ranking.ClampMaxResults(*maxResults)
	}

	res := s.ranker.RankMentors(ctx, ranking.Request{
		Student:    student,
		Candidates: pool,
		MaxResults: limit,
	})

	s.logger.Info("mentors ranked",
		zap.String("student_id", student.ID()),
		zap.Int("mentors", len(mentors)),
		zap.Int("candidates", len(pool)),
		zap.Int("matches", len(res.Matches)),
		zap.String("source", string(res.Source)),
	)

	return Shortlist{Student: student, Matches: res.Matches, Source: res.Source}, nil
}

// Connect records a pending connection request from a student to a mentor.
func (s *Service) Connect(ctx context.Context, studentID, mentorID, message string) (store.Connection, error) {
	studentID = strings.TrimSpace(studentID)
	mentorID = strings.TrimSpace(mentorID)
	if studentID == "" || mentorID == "" {
		return store.Connection{}, fmt.Errorf("%w: student and mentor ids are required", ErrInvalidConnection)
	}
	if studentID == mentorID {
		return store.Connection{}, fmt.Errorf("%w: cannot connect with yourself", ErrInvalidConnection)
	}

	if _, err := s.student(ctx, studentID); err != nil {
		return store.Connection{}, err
	}

	mentor, err := s.profiles.ProfileByID(ctx, mentorID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Connection{}, ErrMentorNotFound
	}
	if err != nil {
		return store.Connection{}, fmt.Errorf("get mentor: %w", err)
	}
	if !mentor.IsMentor() {
		return store.Connection{}, fmt.Errorf("%w: %s is not a mentor", ErrInvalidConnection, mentorID)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultConnectionMessage
	}

	conn, err := s.connections.CreatePendingConnection(ctx, studentID, mentorID, message)
	if err != nil {
		return store.Connection{}, fmt.Errorf("create connection: %w", err)
	}

	s.logger.Info("connection requested",
		zap.String("connection_id", conn.ID),
		zap.String("student_id", studentID),
		zap.String("mentor_id", mentorID),
	)

	return conn, nil
}

func (s *Service) student(ctx context.Context, id string) (profile.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return profile.Profile{}, ErrStudentNotFound
	}

	student, err := s.profiles.ProfileByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return profile.Profile{}, ErrStudentNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}
