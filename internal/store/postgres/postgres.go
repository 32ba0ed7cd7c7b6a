package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/store"
)

const uniqueViolation = "23505"

const profileColumns = `id::text, role::text, full_name, email, department, skills, interests,
	bio, company, job_title, location, graduation_year, linkedin_url`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Store reads profiles and records connections in the profiles and
// mentor_connections tables.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func Connect(ctx context.Context, cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	pingCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := newStore(pool)
	s.pool = pool
	return s, nil
}

func newStore(db querier) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) ProfileByID(ctx context.Context, id string) (profile.Profile, error) {
	// Ids are uuids; anything else cannot exist and would only fail the cast.
	if _, err := uuid.Parse(id); err != nil {
		return profile.Profile{}, store.ErrNotFound
	}

	row := s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)

	rec, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, store.ErrNotFound
		}
		return profile.Profile{}, fmt.Errorf("query profile: %w", err)
	}

	return rec.Profile()
}

func (s *Store) MentorsExcluding(ctx context.Context, excludeID string) ([]profile.Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+`
		 FROM profiles
		 WHERE role = 'alumni' AND id::text <> $1
		 ORDER BY created_at ASC NULLS LAST, id ASC`,
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query mentors: %w", err)
	}
	defer rows.Close()

	out := make([]profile.Profile, 0)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mentor: %w", err)
		}
		p, err := rec.Profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query mentors: %w", err)
	}
	return out, nil
}

func (s *Store) CreatePendingConnection(ctx context.Context, studentID, mentorID, message string) (store.Connection, error) {
	conn := store.Connection{
		ID:        uuid.NewString(),
		StudentID: studentID,
		MentorID:  mentorID,
		Status:    store.StatusPending,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO mentor_connections (id, student_id, mentor_id, status, message, created_at)
		 SELECT $1, $2, $3, 'pending', $4, $5
		 WHERE NOT EXISTS (
		   SELECT 1 FROM mentor_connections
		   WHERE student_id = $2 AND mentor_id = $3 AND status IN ('pending', 'accepted')
		 )`,
		conn.ID, conn.StudentID, conn.MentorID, conn.Message, conn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.Connection{}, store.ErrConnectionExists
		}
		return store.Connection{}, fmt.Errorf("insert connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.Connection{}, store.ErrConnectionExists
	}

	return conn, nil
}

func (s *Store) ConnectedMentorIDs(ctx context.Context, studentID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT mentor_id::text
		 FROM mentor_connections
		 WHERE student_id::text = $1 AND mentor_id IS NOT NULL AND status IN ('pending', 'accepted')
		 ORDER BY created_at ASC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (store.ProfileRecord, error) {
	var rec store.ProfileRecord
	var fullName string
	var email string
	err := row.Scan(
		&rec.ID, &rec.Role, &fullName, &email, &rec.Department, &rec.Skills, &rec.Interests,
		&rec.Bio, &rec.Company, &rec.JobTitle, &rec.Location, &rec.GraduationYear, &rec.LinkedInURL,
	)
	if err != nil {
		return store.ProfileRecord{}, err
	}
	rec.FullName = &fullName
	rec.Email = &email
	return rec, nil
}
