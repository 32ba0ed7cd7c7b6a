// Package store defines how profiles and mentor connections are read and
// written. Adapters live in the postgres and file subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/mentor-ranker/internal/profile"
)

var (
	ErrNotFound         = errors.New("profile not found")
	ErrConnectionExists = errors.New("connection already exists")
)

type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusRejected ConnectionStatus = "rejected"
)

// Connection is a mentorship request from a student to a mentor.
type Connection struct {
	ID        string
	StudentID string
	MentorID  string
	Status    ConnectionStatus
	Message   string
	CreatedAt time.Time
}

type ProfileStore interface {
	// ProfileByID returns ErrNotFound when no profile has the id.
	ProfileByID(ctx context.Context, id string) (profile.Profile, error)
	// MentorsExcluding lists every mentor except excludeID, in a stable order.
	MentorsExcluding(ctx context.Context, excludeID string) ([]profile.Profile, error)
}

type ConnectionRecorder interface {
	// CreatePendingConnection returns ErrConnectionExists when the pair already
	// has a pending or accepted connection.
	CreatePendingConnection(ctx context.Context, studentID, mentorID, message string) (Connection, error)
	ConnectedMentorIDs(ctx context.Context, studentID string) ([]string, error)
}

// Store is what the service needs from a backend.
type Store interface {
	ProfileStore
	ConnectionRecorder
	Ping(ctx context.Context) error
	Close() error
}
