package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// ErrNoJobs is returned by ClaimNext when nothing is claimable.
var ErrNoJobs = errors.New("queue: no claimable jobs")

// JobStore is the persisted scan queue. All state transitions run as
// single SQL statements, so SQLite's writer lock makes claims atomic
// across any number of worker processes sharing the database file.
type JobStore struct {
	db          *sql.DB
	maxAttempts int
	retention   time.Duration
	logger      *logrus.Logger
}

func NewJobStore(db *sql.DB, maxAttempts int, retention time.Duration, logger *logrus.Logger) *JobStore {
	if logger == nil {
		logger = logrus.New()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &JobStore{db: db, maxAttempts: maxAttempts, retention: retention, logger: logger}
}

// Enqueue persists a new PENDING scan job and returns it.
func (s *JobStore) Enqueue(ctx context.Context, scanID, url string) (*models.ScanJob, error) {
	payload, err := json.Marshal(models.ScanJobPayload{ScanID: scanID, URL: url})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	job := &models.ScanJob{
		ID:          uuid.NewString(),
		Type:        models.JobTypeScan,
		Payload:     string(payload),
		Status:      models.JobStatusPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		job.ID, job.Type, job.Payload, job.Status, job.MaxAttempts, job.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"job_id": job.ID, "scan_id": scanID}).Debug("job enqueued")
	return job, nil
}

// ClaimNext atomically claims the oldest claimable job: flips it to
// PROCESSING, stamps started_at and increments attempts in one
// statement. Two concurrent claimers can never receive the same job.
func (s *JobStore) ClaimNext(ctx context.Context) (*models.ScanJob, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`UPDATE jobs
		 SET status = ?, started_at = ?, attempts = attempts + 1
		 WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND attempts < max_attempts
			ORDER BY created_at
			LIMIT 1
		 )
		 RETURNING id, type, payload, status, attempts, max_attempts, created_at, started_at, completed_at, last_error`,
		models.JobStatusProcessing, now.UnixMilli(), models.JobStatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete marks a PROCESSING job COMPLETED.
func (s *JobStore) Complete(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, last_error = '' WHERE id = ? AND status = ?`,
		models.JobStatusCompleted, time.Now().UTC().UnixMilli(), jobID, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireOne(res, jobID)
}

// Fail records a failed attempt. Jobs with attempts left revert to
// PENDING so another worker can retry them; exhausted jobs become
// terminally FAILED with completed_at stamped.
func (s *JobStore) Fail(ctx context.Context, jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
		 SET last_error = ?,
		     status = CASE WHEN attempts < max_attempts THEN ? ELSE ? END,
		     completed_at = CASE WHEN attempts < max_attempts THEN NULL ELSE ? END
		 WHERE id = ? AND status = ?`,
		msg, models.JobStatusPending, models.JobStatusFailed,
		time.Now().UTC().UnixMilli(), jobID, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireOne(res, jobID)
}

// Get returns a job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.ScanJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, payload, status, attempts, max_attempts, created_at, started_at, completed_at, last_error
		 FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return job, err
}

// Counts returns the number of jobs per status.
func (s *JobStore) Counts(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Cleanup deletes terminal jobs older than the retention window and
// returns how many were removed.
func (s *JobStore) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND created_at < ?`,
		models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.WithField("deleted", n).Info("queue retention cleanup")
	}
	return n, nil
}

// RecoverStale sweeps PROCESSING jobs whose started_at is older than
// maxAge. Their owning worker is presumed dead; jobs with attempts
// remaining go back to PENDING, exhausted ones become FAILED.
func (s *JobStore) RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = CASE WHEN attempts < max_attempts THEN ? ELSE ? END,
		     completed_at = CASE WHEN attempts < max_attempts THEN NULL ELSE ? END,
		     last_error = 'worker lost: processing exceeded ' || ?
		 WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		models.JobStatusPending, models.JobStatusFailed, now.UnixMilli(),
		maxAge.String(), models.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.WithField("recovered", n).Warn("recovered stale processing jobs")
	}
	return n, nil
}

func requireOne(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s is not in PROCESSING state", jobID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.ScanJob, error) {
	var job models.ScanJob
	var createdAt int64
	var startedAt, completedAt sql.NullInt64
	err := row.Scan(&job.ID, &job.Type, &job.Payload, &job.Status,
		&job.Attempts, &job.MaxAttempts, &createdAt, &startedAt, &completedAt, &job.LastError)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64).UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}
