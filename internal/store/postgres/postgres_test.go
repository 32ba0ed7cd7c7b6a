package postgres

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/store"
)

const studentUUID = "2f9b0d43-5d0e-4a53-a2a7-6c1a0f0f5e11"

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.rows[r.pos-1]) }

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }

func (r *fakeRows) RawValues() [][]byte { return nil }

func (r *fakeRows) Conn() *pgx.Conn { return nil }

// assign copies values into scan destinations the way pgx would for the
// handful of types used here.
func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if target.Kind() == reflect.Pointer && val.Kind() != reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(val)
			target.Set(p)
			continue
		}
		target.Set(val)
	}
	return nil
}

type fakeDB struct {
	row      fakeRow
	rows     *fakeRows
	execTag  pgconn.CommandTag
	execErr  error
	queries  []string
	execArgs []any
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	return f.rows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	return f.row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	f.execArgs = args
	return f.execTag, f.execErr
}

func profileRow(id, role string) []any {
	return []any{
		id, role, "Full " + id, id + "@uni.edu", "CS", []string{"Go", "SQL"}, []string(nil),
		nil, "Acme", nil, nil, 2019, nil,
	}
}

func TestProfileByID(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: profileRow(studentUUID, "student")}}
	s := newStore(db)

	p, err := s.ProfileByID(context.Background(), studentUUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != studentUUID || p.Role() != profile.RoleStudent || p.FullName != "Full "+studentUUID {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if company, _ := p.Company.Get(); company != "Acme" {
		t.Fatalf("unexpected company: %q", company)
	}
	if p.JobTitle.IsSet() || p.Bio != "" {
		t.Fatal("null columns must be absent")
	}
	if email, _ := p.Email.Get(); email != studentUUID+"@uni.edu" {
		t.Fatalf("unexpected email: %q", email)
	}
}

func TestProfileByIDNotFound(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		s := newStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})
		if _, err := s.ProfileByID(context.Background(), studentUUID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("not a uuid", func(t *testing.T) {
		db := &fakeDB{}
		s := newStore(db)
		if _, err := s.ProfileByID(context.Background(), "'; DROP TABLE profiles"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(db.queries) != 0 {
			t.Fatalf("expected no query, got %v", db.queries)
		}
	})

	t.Run("driver failure", func(t *testing.T) {
		s := newStore(&fakeDB{row: fakeRow{err: errors.New("conn closed")}})
		_, err := s.ProfileByID(context.Background(), studentUUID)
		if err == nil || errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected wrapped driver error, got %v", err)
		}
	})
}

func TestMentorsExcluding(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{rows: [][]any{
		profileRow("m1", "alumni"),
		profileRow("m2", "alumni"),
	}}}
	s := newStore(db)

	mentors, err := s.MentorsExcluding(context.Background(), studentUUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mentors) != 2 || mentors[0].ID() != "m1" || !mentors[1].IsMentor() {
		t.Fatalf("unexpected mentors: %+v", mentors)
	}
	if !strings.Contains(db.queries[0], "role = 'alumni'") {
		t.Fatalf("expected mentor role filter, got %q", db.queries[0])
	}
}

func TestCreatePendingConnection(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("created", func(t *testing.T) {
		db := &fakeDB{execTag: pgconn.NewCommandTag("INSERT 0 1")}
		s := newStore(db)
		s.now = func() time.Time { return fixed }

		conn, err := s.CreatePendingConnection(context.Background(), "s1", "m1", "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if conn.ID == "" || conn.Status != store.StatusPending || !conn.CreatedAt.Equal(fixed) {
			t.Fatalf("unexpected connection: %+v", conn)
		}
		if db.execArgs[1] != "s1" || db.execArgs[2] != "m1" || db.execArgs[3] != "hello" {
			t.Fatalf("unexpected args: %v", db.execArgs)
		}
	})

	t.Run("existing pending connection", func(t *testing.T) {
		s := newStore(&fakeDB{execTag: pgconn.NewCommandTag("INSERT 0 0")})
		if _, err := s.CreatePendingConnection(context.Background(), "s1", "m1", "hello"); !errors.Is(err, store.ErrConnectionExists) {
			t.Fatalf("expected ErrConnectionExists, got %v", err)
		}
	})

	t.Run("unique violation", func(t *testing.T) {
		s := newStore(&fakeDB{execErr: &pgconn.PgError{Code: uniqueViolation}})
		if _, err := s.CreatePendingConnection(context.Background(), "s1", "m1", "hello"); !errors.Is(err, store.ErrConnectionExists) {
			t.Fatalf("expected ErrConnectionExists, got %v", err)
		}
	})
}

func TestConnectedMentorIDs(t *testing.T) {
	s := newStore(&fakeDB{rows: &fakeRows{rows: [][]any{{"m1"}, {"m3"}}}})

	ids, err := s.ConnectedMentorIDs(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"m1", "m3"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	failing := newStore(&fakeDB{rows: &fakeRows{err: errors.New("broken")}})
	if _, err := failing.ConnectedMentorIDs(context.Background(), "s1"); err == nil {
		t.Fatal("expected rows error to surface")
	}
}
