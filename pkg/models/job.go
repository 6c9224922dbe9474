package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

const JobTypeScan = "scan"

// ScanJob is one persisted unit of work in the queue. Status transitions
// are owned exclusively by the job store and the worker loop.
type ScanJob struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Payload     string     `json:"payload"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// ScanJobPayload is the serialized queue payload for a scan job.
type ScanJobPayload struct {
	ScanID string `json:"scanId"`
	URL    string `json:"url"`
}

func (j *ScanJob) DecodePayload() (*ScanJobPayload, error) {
	var p ScanJobPayload
	if err := json.Unmarshal([]byte(j.Payload), &p); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	if p.ScanID == "" || p.URL == "" {
		return nil, fmt.Errorf("incomplete job payload: %s", j.Payload)
	}
	return &p, nil
}

// Terminal reports whether the job can never be claimed again.
func (j *ScanJob) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted:
		return true
	case JobStatusFailed:
		return j.Attempts >= j.MaxAttempts
	default:
		return false
	}
}

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "PENDING"
	ScanStatusScanning  ScanStatus = "SCANNING"
	ScanStatusCompleted ScanStatus = "COMPLETED"
	ScanStatusFailed    ScanStatus = "FAILED"
)

// ScanRecord is the persisted outcome of one scan, keyed by scan id.
type ScanRecord struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Status      ScanStatus `json:"status"`
	RiskScore   int        `json:"risk_score"`
	RiskLevel   string     `json:"risk_level"`
	Grade       string     `json:"grade"`
	Breakdown   string     `json:"breakdown,omitempty"`
	Report      string     `json:"report,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WorkerLease is the on-disk claim one worker process holds on a pool slot.
type WorkerLease struct {
	Slot      int       `json:"slot"`
	OwnerPID  int       `json:"owner_pid"`
	Timestamp time.Time `json:"timestamp"`
}
