// Package relay is the always-on side of an escalation. It accepts delivery
// tasks with absolute times over HTTP, keeps them in SQLite and delivers each
// one once its time has come, whether or not the device is still alive.
package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lcrostarosa/vigil/internal/escalation"
)

// Status is the lifecycle state of a stored task
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is a task as the relay stores it. Generation changes every time the
// task is replaced, so a delivery armed for an older version can tell.
type Record struct {
	escalation.Task
	Status      Status
	Generation  int64
	Attempts    int
	LastError   string
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStore persists relay tasks in SQLite.
type TaskStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenTaskStore opens or creates the task database at path.
// Use ":memory:" for an in-memory database.
func OpenTaskStore(path string) (*TaskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &TaskStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *TaskStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		destination TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		scheduled_time INTEGER NOT NULL,
		status TEXT NOT NULL,
		generation INTEGER NOT NULL DEFAULT 1,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		delivered_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, scheduled_time);`)
	return err
}

// Close closes the database
func (s *TaskStore) Close() error {
	return s.db.Close()
}

// Put inserts t or replaces the task with the same id. A replaced task is
// pending again with a fresh attempt count.
func (s *TaskStore) Put(ctx context.Context, t escalation.Task, now time.Time) (Record, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, destination, channel, message, scheduled_time, status, generation, attempts, last_error, delivered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, 0, '', NULL, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			destination = excluded.destination,
			channel = excluded.channel,
			message = excluded.message,
			scheduled_time = excluded.scheduled_time,
			status = excluded.status,
			generation = tasks.generation + 1,
			attempts = 0,
			last_error = '',
			delivered_at = NULL,
			updated_at = excluded.updated_at`,
		t.TaskID, t.Destination, t.Channel, t.Message, t.ScheduledTime.UnixMilli(),
		string(StatusPending), now.UnixMilli(), now.UnixMilli())
	s.mu.Unlock()
	if err != nil {
		return Record{}, fmt.Errorf("upsert task %s: %w", t.TaskID, err)
	}

	rec, _, err := s.Get(ctx, t.TaskID)
	return rec, err
}

const selectColumns = `task_id, destination, channel, message, scheduled_time, status, generation, attempts, last_error, delivered_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r                    Record
		status               string
		scheduled            int64
		delivered            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&r.TaskID, &r.Destination, &r.Channel, &r.Message, &scheduled, &status,
		&r.Generation, &r.Attempts, &r.LastError, &delivered, &createdAt, &updatedAt); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.ScheduledTime = time.UnixMilli(scheduled)
	r.CreatedAt = time.UnixMilli(createdAt)
	r.UpdatedAt = time.UnixMilli(updatedAt)
	if delivered.Valid {
		t := time.UnixMilli(delivered.Int64)
		r.DeliveredAt = &t
	}
	return r, nil
}

// Get returns the task with id. ok is false for unknown ids.
func (s *TaskStore) Get(ctx context.Context, id string) (rec Record, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM tasks WHERE task_id = ?", id)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("select task %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns tasks soonest first. An empty status lists all of them.
func (s *TaskStore) List(ctx context.Context, status Status) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT " + selectColumns + " FROM tasks"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY scheduled_time ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Cancel marks a pending task cancelled. It reports whether a pending task
// was found; cancelling anything else is not an error.
func (s *TaskStore) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	return s.transition(ctx, id, -1, StatusCancelled, now, "")
}

// RecordAttempt counts a failed delivery attempt of generation gen.
func (s *TaskStore) RecordAttempt(ctx context.Context, id string, gen int64, cause string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE task_id = ? AND generation = ? AND status = ?`,
		cause, now.UnixMilli(), id, gen, string(StatusPending))
	if err != nil {
		return fmt.Errorf("record attempt %s: %w", id, err)
	}
	return nil
}

// MarkDelivered records a successful delivery of generation gen.
func (s *TaskStore) MarkDelivered(ctx context.Context, id string, gen int64, now time.Time) error {
	_, err := s.transition(ctx, id, gen, StatusDelivered, now, "")
	return err
}

// MarkFailed gives up on generation gen.
func (s *TaskStore) MarkFailed(ctx context.Context, id string, gen int64, cause string, now time.Time) error {
	_, err := s.transition(ctx, id, gen, StatusFailed, now, cause)
	return err
}

// transition moves a pending task to status. gen < 0 matches any generation.
func (s *TaskStore) transition(ctx context.Context, id string, gen int64, status Status, now time.Time, cause string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE tasks SET status = ?, updated_at = ?`
	args := []any{string(status), now.UnixMilli()}
	if status == StatusDelivered {
		query += `, delivered_at = ?, attempts = attempts + 1`
		args = append(args, now.UnixMilli())
	}
	if cause != "" {
		query += `, last_error = ?`
		args = append(args, cause)
	}
	query += ` WHERE task_id = ? AND status = ?`
	args = append(args, id, string(StatusPending))
	if gen >= 0 {
		query += ` AND generation = ?`
		args = append(args, gen)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark task %s %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Prune deletes finished tasks last touched before cutoff.
func (s *TaskStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE status != ? AND updated_at < ?`,
		string(StatusPending), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of tasks with status
func (s *TaskStore) Count(ctx context.Context, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE status = ?", string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
