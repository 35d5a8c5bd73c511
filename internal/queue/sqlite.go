// Package queue provides the durable job-submission collaborator backed by
// SQLite. Jobs survive process restarts; finished results persist until the
// configured TTL expires.
package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Store is a SQLite-backed job queue.
type Store struct {
	dbPath    string
	db        *sql.DB
	mu        sync.Mutex
	resultTTL time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithResultTTL sets how long finished job records are kept.
func WithResultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.resultTTL = ttl
	}
}

// New opens (or creates) the queue database.
func New(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{
		dbPath:    dbPath,
		resultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}
	s.db = db

	if _, err := db.Exec(migrationV1); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("applying queue migration: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("applying queue migration: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the queue backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.ErrCollaboratorUnavailable("queue", err)
	}
	return nil
}

// Submit enqueues a run and returns its job ID.
func (s *Store) Submit(ctx context.Context, input core.TaskInput, apiKey string) (core.JobID, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshaling job input: %w", err)
	}

	id := core.JobID(uuid.NewString())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, state, input, api_key, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		string(id), string(core.JobQueued), string(payload), apiKey, now(),
	)
	if err != nil {
		return "", core.ErrCollaboratorUnavailable("queue", err)
	}
	return id, nil
}

// Poll returns the current view of a job.
func (s *Store) Poll(ctx context.Context, id core.JobID) (*core.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, input, api_key, partial_state, error, enqueued_at, started_at, finished_at
		 FROM jobs WHERE id = ?`, string(id))
	return scanJob(row)
}

// Cancel marks a queued or running job as cancelled. The worker observes the
// flag and propagates cancellation into the in-flight run.
func (s *Store) Cancel(ctx context.Context, id core.JobID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, finished_at = ? WHERE id = ? AND state IN (?, ?)`,
		string(core.JobCancelled), now(), string(id), string(core.JobQueued), string(core.JobRunning),
	)
	if err != nil {
		return core.ErrCollaboratorUnavailable("queue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		job, pollErr := s.Poll(ctx, id)
		if pollErr != nil {
			return pollErr
		}
		return core.ErrState(core.CodeInvalidState,
			fmt.Sprintf("job %s is %s and cannot be cancelled", id, job.State))
	}
	return nil
}

// Dequeue atomically claims the oldest queued job, transitioning it to
// running. Returns nil with no error when the queue is empty.
func (s *Store) Dequeue(ctx context.Context) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, state, input, api_key, partial_state, error, enqueued_at, started_at, finished_at
		 FROM jobs WHERE state = ? ORDER BY enqueued_at LIMIT 1`, string(core.JobQueued))
	job, err := scanJob(row)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, nil
		}
		return nil, err
	}

	startedAt := now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET state = ?, started_at = ? WHERE id = ?`,
		string(core.JobRunning), startedAt, string(job.ID)); err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}

	job.State = core.JobRunning
	t := parseTime(startedAt)
	job.StartedAt = &t
	return job, nil
}

// List returns the most recent jobs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, input, api_key, partial_state, error, enqueued_at, started_at, finished_at
		 FROM jobs ORDER BY enqueued_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}
	defer rows.Close()

	var jobs []*core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdatePartial stores the latest run snapshot for a running job so polls
// can surface partial state.
func (s *Store) UpdatePartial(ctx context.Context, id core.JobID, snap core.RunSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling partial state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET partial_state = ? WHERE id = ?`, string(payload), string(id))
	if err != nil {
		return core.ErrCollaboratorUnavailable("queue", err)
	}
	return nil
}

// Complete marks a job finished with its final snapshot.
func (s *Store) Complete(ctx context.Context, id core.JobID, snap core.RunSnapshot) error {
	return s.finish(ctx, id, core.JobFinished, "", &snap)
}

// Fail marks a job failed, keeping whatever snapshot accumulated.
func (s *Store) Fail(ctx context.Context, id core.JobID, cause string, snap *core.RunSnapshot) error {
	return s.finish(ctx, id, core.JobFailed, cause, snap)
}

func (s *Store) finish(ctx context.Context, id core.JobID, state core.JobState, cause string, snap *core.RunSnapshot) error {
	var payload interface{}
	if snap != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshaling final state: %w", err)
		}
		payload = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, error = ?, partial_state = COALESCE(?, partial_state), finished_at = ?
		 WHERE id = ? AND state = ?`,
		string(state), cause, payload, now(), string(id), string(core.JobRunning),
	)
	if err != nil {
		return core.ErrCollaboratorUnavailable("queue", err)
	}
	return nil
}

// IsCancelled reports whether a cancel request was recorded for the job.
func (s *Store) IsCancelled(ctx context.Context, id core.JobID) (bool, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, string(id)).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, core.ErrNotFound("job", string(id))
	}
	if err != nil {
		return false, core.ErrCollaboratorUnavailable("queue", err)
	}
	return core.JobState(state) == core.JobCancelled, nil
}

// CountActive returns how many queued or running jobs an API key owns.
func (s *Store) CountActive(ctx context.Context, apiKey string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE api_key = ? AND state IN (?, ?)`,
		apiKey, string(core.JobQueued), string(core.JobRunning)).Scan(&n)
	if err != nil {
		return 0, core.ErrCollaboratorUnavailable("queue", err)
	}
	return n, nil
}

// Depth returns the number of queued jobs.
func (s *Store) Depth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE state = ?`, string(core.JobQueued)).Scan(&n)
	if err != nil {
		return 0, core.ErrCollaboratorUnavailable("queue", err)
	}
	return n, nil
}

// PurgeExpired deletes terminal jobs older than the result TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.resultTTL).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE state IN (?, ?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(core.JobFinished), string(core.JobFailed), string(core.JobCancelled), cutoff,
	)
	if err != nil {
		return 0, core.ErrCollaboratorUnavailable("queue", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*core.Job, error) {
	var (
		id, state, input, apiKey, errMsg, enqueuedAt string
		partial, startedAt, finishedAt               sql.NullString
	)
	err := row.Scan(&id, &state, &input, &apiKey, &partial, &errMsg, &enqueuedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("job", id)
	}
	if err != nil {
		return nil, core.ErrCollaboratorUnavailable("queue", err)
	}

	job := &core.Job{
		ID:         core.JobID(id),
		State:      core.JobState(state),
		APIKey:     apiKey,
		Error:      errMsg,
		EnqueuedAt: parseTime(enqueuedAt),
	}
	if err := json.Unmarshal([]byte(input), &job.Input); err != nil {
		return nil, fmt.Errorf("unmarshaling job input: %w", err)
	}
	if partial.Valid && partial.String != "" {
		var snap core.RunSnapshot
		if err := json.Unmarshal([]byte(partial.String), &snap); err != nil {
			return nil, fmt.Errorf("unmarshaling partial state: %w", err)
		}
		job.PartialState = &snap
	}
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	return job, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
