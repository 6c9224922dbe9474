package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func newTestStore(t *testing.T, maxAttempts int) *JobStore {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobStore(db, maxAttempts, time.Hour, nil)
}

func TestEnqueueAndClaim(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "scan-1", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)

	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
	require.NotNil(t, claimed.StartedAt)

	payload, err := claimed.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, "scan-1", payload.ScanID)
	assert.Equal(t, "https://example.com", payload.URL)
}

func TestClaimOrderIsOldestFirst(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, "scan-1", "https://a.example")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = store.Enqueue(ctx, "scan-2", "https://b.example")
	require.NoError(t, err)

	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)
}

func TestClaimEmptyQueue(t *testing.T) {
	store := newTestStore(t, 3)
	_, err := store.ClaimNext(context.Background())
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestConcurrentClaimsNeverDouble(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	const jobs = 10
	for i := 0; i < jobs; i++ {
		_, err := store.Enqueue(ctx, "scan", "https://example.com")
		require.NoError(t, err)
	}

	const claimers = 50
	var mu sync.Mutex
	claimed := make(map[string]int)
	errs := make(chan error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(ctx)
			if errors.Is(err, ErrNoJobs) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			claimed[job.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, claimed, jobs)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestFailRequeuesUntilExhausted(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "scan-1", "https://example.com")
	require.NoError(t, err)

	// Attempt 1 fails: back to PENDING.
	job, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, job.ID, errors.New("crawl timeout")))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "crawl timeout", got.LastError)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.Terminal())

	// Attempt 2 fails: attempts exhausted, terminal FAILED.
	job, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)
	require.NoError(t, store.Fail(ctx, job.ID, errors.New("still broken")))

	got, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "still broken", got.LastError)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.Terminal())

	// Nothing left to claim.
	_, err = store.ClaimNext(ctx)
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestCompleteIsTerminal(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "scan-1", "https://example.com")
	require.NoError(t, err)
	job, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, job.ID))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Completing twice is an error: the job left PROCESSING.
	assert.Error(t, store.Complete(ctx, job.ID))

	_, err = store.ClaimNext(ctx)
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestCounts(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Enqueue(ctx, "scan", "https://example.com")
		require.NoError(t, err)
	}
	job, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, job.ID))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.JobStatusPending])
	assert.Equal(t, 1, counts[models.JobStatusCompleted])
}

func TestRecoverStale(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "scan-1", "https://example.com")
	require.NoError(t, err)
	job, err := store.ClaimNext(ctx)
	require.NoError(t, err)

	// Fresh PROCESSING job survives the sweep.
	n, err := store.RecoverStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	// With a zero-age horizon the claim is immediately stale.
	time.Sleep(5 * time.Millisecond)
	n, err = store.RecoverStale(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Contains(t, got.LastError, "worker lost")
}

func TestCleanupKeepsRecentJobs(t *testing.T) {
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	store := NewJobStore(db, 3, time.Hour, nil)
	ctx := context.Background()

	_, err = store.Enqueue(ctx, "recent", "https://example.com")
	require.NoError(t, err)
	job, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, job.ID))

	// Completed but younger than the retention window.
	n, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Backdate it past the window and sweep again.
	_, err = db.ExecContext(ctx, `UPDATE jobs SET created_at = ? WHERE id = ?`,
		time.Now().Add(-2*time.Hour).UnixMilli(), job.ID)
	require.NoError(t, err)

	n, err = store.Cleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
