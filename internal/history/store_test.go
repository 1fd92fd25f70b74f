package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/quicklink/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)
	started := time.Now().Add(-time.Second)

	runID, err := store.StartRun("https://example.com/page", started)
	require.NoError(t, err)

	recorder := store.Recorder(runID)
	recorder.Record(models.Outcome{
		URL:        "https://example.com/a",
		Mode:       models.ModeHint,
		Source:     models.LinkSourceObserver,
		StatusCode: 200,
		Bytes:      512,
		StartedAt:  started,
		Duration:   120 * time.Millisecond,
	})
	recorder.Record(models.Outcome{
		URL:       "https://example.com/b",
		Mode:      models.ModeFetch,
		Source:    models.LinkSourceQueue,
		StartedAt: started,
		Err:       errors.New("connection reset"),
	})

	summary := &models.SessionSummary{
		PageURL:    "https://example.com/page",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Stats:      models.DispatchStats{Accepted: 2, Rejected: 3, Duplicates: 1, Succeeded: 1, Failed: 1},
		Anomalies:  2,
	}
	require.NoError(t, store.FinishRun(runID, summary, StatusCompleted))

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.Valid)
	assert.Equal(t, int64(2), runs[0].Accepted)
	assert.Equal(t, int64(3), runs[0].Rejected)
	assert.Equal(t, 2, runs[0].Anomalies)

	prefetches, err := store.Prefetches(runID)
	require.NoError(t, err)
	require.Len(t, prefetches, 2)
	assert.Equal(t, "https://example.com/a", prefetches[0].URL)
	assert.Equal(t, "hint", prefetches[0].Mode)
	assert.Equal(t, int64(120), prefetches[0].DurationMs)
	assert.False(t, prefetches[0].Error.Valid)
	assert.Equal(t, "fetch", prefetches[1].Mode)
	assert.Equal(t, "queue", prefetches[1].Source)
	assert.Equal(t, "connection reset", prefetches[1].Error.String)
}

func TestStore_RecentRunsOrder(t *testing.T) {
	store := newTestStore(t)

	first, err := store.StartRun("https://example.com/1", time.Now())
	require.NoError(t, err)
	second, err := store.StartRun("https://example.com/2", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(first, nil, StatusFailed))

	runs, err := store.RecentRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, StatusStarted, runs[0].Status)
	assert.Equal(t, StatusFailed, runs[1].Status)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = store.StartRun("https://example.com/", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.RecentRuns(5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_RunsForSite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.StartRun("https://www.example.co.uk/a", time.Now())
	require.NoError(t, err)
	_, err = store.StartRun("https://blog.example.co.uk/b", time.Now())
	require.NoError(t, err)
	_, err = store.StartRun("https://other.test/c", time.Now())
	require.NoError(t, err)
	_, err = store.StartRun("http://127.0.0.1:8080/d", time.Now())
	require.NoError(t, err)

	runs, err := store.RunsForSite("Example.co.uk", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "https://blog.example.co.uk/b", runs[0].PageURL)
	assert.Equal(t, "example.co.uk", runs[1].Site)

	runs, err = store.RunsForSite("127.0.0.1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
