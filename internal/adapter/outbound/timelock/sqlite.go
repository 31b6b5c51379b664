package timelock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goldengate/goldengate/internal/domain/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS time_locks (
	id         TEXT PRIMARY KEY,
	cancelled  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);`

// SQLiteStore persists time locks in a SQLite database so pending grants
// survive a gateway restart and cancellation links keep working.
type SQLiteStore struct {
	db *sql.DB
}

var _ policy.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open time lock database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create time_locks table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, lock policy.TimeLock) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO time_locks (id, cancelled, created_at) VALUES (?, ?, ?)`,
		lock.ID, boolToInt(lock.Cancelled), lock.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert time lock %s: %w", lock.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (policy.TimeLock, error) {
	var (
		lock      policy.TimeLock
		cancelled int
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, cancelled, created_at FROM time_locks WHERE id = ?`, id).
		Scan(&lock.ID, &cancelled, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.TimeLock{}, policy.ErrLockNotFound
	}
	if err != nil {
		return policy.TimeLock{}, fmt.Errorf("get time lock %s: %w", id, err)
	}
	lock.Cancelled = cancelled != 0
	if t, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
		lock.CreatedAt = t
	}
	return lock, nil
}

func (s *SQLiteStore) Cancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_locks SET cancelled = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cancel time lock %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel time lock %s: %w", id, err)
	}
	if affected == 0 {
		return policy.ErrLockNotFound
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
