package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func newTestSubmitter(t *testing.T) (*Submitter, *JobStore, *storage.ScanStore) {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	jobs := NewJobStore(db, 3, time.Hour, nil)
	scans := storage.NewScanStore(db, nil)
	return NewSubmitter(jobs, scans, nil, false, nil), jobs, scans
}

func TestSubmitCreatesScanAndJob(t *testing.T) {
	sub, jobs, scans := newTestSubmitter(t)
	ctx := context.Background()

	rec, job, err := sub.Submit(ctx, "Example.COM/path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path", rec.URL)
	assert.Equal(t, "example.com", rec.Domain)
	assert.Equal(t, models.ScanStatusPending, rec.Status)

	stored, err := scans.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, stored.URL)

	claimed, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	payload, err := claimed.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, rec.ID, payload.ScanID)
	assert.Equal(t, rec.URL, payload.URL)
}

func TestSubmitRejectsInvalidTargetBeforePersisting(t *testing.T) {
	sub, jobs, scans := newTestSubmitter(t)
	ctx := context.Background()

	for _, target := range []string{"", "ftp://example.com", "https://"} {
		_, _, err := sub.Submit(ctx, target)
		assert.Error(t, err, target)
	}

	_, err := jobs.ClaimNext(ctx)
	assert.ErrorIs(t, err, ErrNoJobs)
	recs, err := scans.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "rejected targets must leave no rows behind")
}

func TestSubmitPreservesExplicitHTTPScheme(t *testing.T) {
	sub, _, _ := newTestSubmitter(t)

	rec, _, err := sub.Submit(context.Background(), "http://legacy.example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://legacy.example.com", rec.URL)
}
