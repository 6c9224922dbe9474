package queue

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/internal/detectors"
	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

// Submitter is the only entry point for new scans. It validates and
// normalizes the target before any row exists, so the queue never holds
// a job a worker cannot at least attempt.
type Submitter struct {
	jobs     *JobStore
	scans    *storage.ScanStore
	resolver *detectors.DNSResolver
	precheck bool
	logger   *logrus.Logger
}

func NewSubmitter(jobs *JobStore, scans *storage.ScanStore, resolver *detectors.DNSResolver, dnsPrecheck bool, logger *logrus.Logger) *Submitter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Submitter{jobs: jobs, scans: scans, resolver: resolver, precheck: dnsPrecheck, logger: logger}
}

// Submit normalizes the URL, optionally verifies the host resolves,
// creates the scan record and enqueues the job. It returns the created
// scan and job.
func (s *Submitter) Submit(ctx context.Context, rawURL string) (*models.ScanRecord, *models.ScanJob, error) {
	normalized, err := utils.NormalizeURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target %q: %w", rawURL, err)
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target %q: %w", rawURL, err)
	}
	host := parsed.Hostname()

	if s.precheck && s.resolver != nil {
		if !s.resolver.HostExists(ctx, host) {
			return nil, nil, fmt.Errorf("domain %s does not resolve", host)
		}
	}

	rec := &models.ScanRecord{
		ID:     uuid.NewString(),
		URL:    normalized,
		Domain: host,
		Status: models.ScanStatusPending,
	}
	if err := s.scans.Create(ctx, rec); err != nil {
		return nil, nil, err
	}

	job, err := s.jobs.Enqueue(ctx, rec.ID, normalized)
	if err != nil {
		// Leave the scan row in place; it records the attempt and the
		// retention sweep will clear it.
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"scan_id": rec.ID,
		"job_id":  job.ID,
		"url":     normalized,
	}).Info("scan submitted")
	return rec, job, nil
}
