// Package file serves profiles from a JSON export for offline runs. Connections
// created through it live in memory for the lifetime of the process.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/store"
)

type connectionRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	MentorID  string `json:"mentor_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type document struct {
	Profiles    []map[string]any `json:"profiles"`
	Connections []map[string]any `json:"connections"`
}

type Store struct {
	mu          sync.RWMutex
	profiles    []profile.Profile
	byID        map[string]int
	connections []store.Connection
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

// Load reads path. The file is either an array of profile rows or an object
// with "profiles" and optional "connections" arrays, using the column names
// of the database tables.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Store, error) {
	var doc document
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &doc.Profiles); err != nil {
			return nil, fmt.Errorf("parse profiles file: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	var records []store.ProfileRecord
	if err := decode(doc.Profiles, &records); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	s := &Store{
		profiles: make([]profile.Profile, 0, len(records)),
		byID:     make(map[string]int, len(records)),
		now:      time.Now,
	}
	for _, rec := range records {
		p, err := rec.Profile()
		if err != nil {
			return nil, err
		}
		if _, dup := s.byID[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate profile id %s", p.ID())
		}
		s.byID[p.ID()] = len(s.profiles)
		s.profiles = append(s.profiles, p)
	}

	var conns []connectionRecord
	if err := decode(doc.Connections, &conns); err != nil {
		return nil, fmt.Errorf("decode connections: %w", err)
	}
	for _, c := range conns {
		status := store.ConnectionStatus(strings.ToLower(strings.TrimSpace(c.Status)))
		if status == "" {
			status = store.StatusPending
		}
		s.connections = append(s.connections, store.Connection{
			ID:        c.ID,
			StudentID: c.StudentID,
			MentorID:  c.MentorID,
			Status:    status,
			Message:   c.Message,
		})
	}

	return s, nil
}

func decode(input any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ProfileByID(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return profile.Profile{}, store.ErrNotFound
	}
	return s.profiles[idx], nil
}

func (s *Store) MentorsExcluding(_ context.Context, excludeID string) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.IsMentor() && p.ID() != excludeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreatePendingConnection(_ context.Context, studentID, mentorID, message string) (store.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.connections {
		if c.StudentID == studentID && c.MentorID == mentorID && active(c.Status) {
			return store.Connection{}, store.ErrConnectionExists
		}
	}

	conn := store.Connection{
		ID:        uuid.NewString(),
		StudentID: studentID,
		MentorID:  mentorID,
		Status:    store.StatusPending,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	s.connections = append(s.connections, conn)
	return conn, nil
}

func (s *Store) ConnectedMentorIDs(_ context.Context, studentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for _, c := range s.connections {
		if c.StudentID == studentID && active(c.Status) {
			ids = append(ids, c.MentorID)
		}
	}
	return ids, nil
}

func active(status store.ConnectionStatus) bool {
	return status == store.StatusPending || status == store.StatusAccepted
}
