package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// ErrScanNotFound is returned when a scan id has no record.
var ErrScanNotFound = errors.New("storage: scan not found")

// ScanStore persists scan records in the shared scanner database.
type ScanStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewScanStore(db *sql.DB, logger *logrus.Logger) *ScanStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &ScanStore{db: db, logger: logger}
}

// Create inserts a new PENDING scan record.
func (s *ScanStore) Create(ctx context.Context, rec *models.ScanRecord) error {
	if rec.ID == "" || rec.URL == "" {
		return fmt.Errorf("scan record requires id and url")
	}
	if rec.Status == "" {
		rec.Status = models.ScanStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, url, domain, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Domain, rec.Status, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

// MarkScanning flips a scan to SCANNING and stamps started_at.
func (s *ScanStore) MarkScanning(ctx context.Context, scanID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, started_at = ? WHERE id = ?`,
		models.ScanStatusScanning, time.Now().UTC().UnixMilli(), scanID)
	if err != nil {
		return fmt.Errorf("mark scan scanning: %w", err)
	}
	return nil
}

// Complete stores the scoring outcome and flips the scan to COMPLETED.
func (s *ScanStore) Complete(ctx context.Context, scanID string, score int, riskLevel, grade, breakdown, report, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans
		 SET status = ?, risk_score = ?, risk_level = ?, grade = ?,
		     breakdown = ?, report = ?, content_hash = ?, error = '', completed_at = ?
		 WHERE id = ?`,
		models.ScanStatusCompleted, score, riskLevel, grade,
		breakdown, report, contentHash, time.Now().UTC().UnixMilli(), scanID)
	if err != nil {
		return fmt.Errorf("complete scan: %w", err)
	}
	return requireScan(res, scanID)
}

// Fail records a terminal scan failure.
func (s *ScanStore) Fail(ctx context.Context, scanID, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		models.ScanStatusFailed, cause, time.Now().UTC().UnixMilli(), scanID)
	if err != nil {
		return fmt.Errorf("fail scan: %w", err)
	}
	return requireScan(res, scanID)
}

// Get returns one scan record by id.
func (s *ScanStore) Get(ctx context.Context, scanID string) (*models.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, domain, status, risk_score, risk_level, grade, breakdown, report,
		        content_hash, error, created_at, started_at, completed_at
		 FROM scans WHERE id = ?`, scanID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}
	return rec, err
}

// ListRecent returns the newest scans first, up to limit.
func (s *ScanStore) ListRecent(ctx context.Context, limit int) ([]*models.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, domain, status, risk_score, risk_level, grade, breakdown, report,
		        content_hash, error, created_at, started_at, completed_at
		 FROM scans ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*models.ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts returns the number of scans per status.
func (s *ScanStore) Counts(ctx context.Context) (map[models.ScanStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM scans GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.ScanStatus]int)
	for rows.Next() {
		var status models.ScanStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func requireScan(res sql.Result, scanID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("scan %s: %w", scanID, ErrScanNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	var createdAt int64
	var riskScore, startedAt, completedAt sql.NullInt64
	var breakdown, report sql.NullString
	err := row.Scan(&rec.ID, &rec.URL, &rec.Domain, &rec.Status, &riskScore,
		&rec.RiskLevel, &rec.Grade, &breakdown, &report,
		&rec.ContentHash, &rec.Error, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if riskScore.Valid {
		rec.RiskScore = int(riskScore.Int64)
	}
	rec.Breakdown = breakdown.String
	rec.Report = report.String
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64).UTC()
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		rec.CompletedAt = &t
	}
	return &rec, nil
}
