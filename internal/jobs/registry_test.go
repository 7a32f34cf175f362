package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	ID       string
	Progress int
	Status   string
}

func TestMemoryRegistryCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[testJob]("test")

	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))
	err := r.Create(ctx, "a", testJob{ID: "a", Progress: 50})
	assert.ErrorIs(t, err, ErrDuplicateJob)

	got, ok := r.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 0, got.Progress, "duplicate create must not overwrite")
}

func TestMemoryRegistryUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[testJob]("test")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))

	got, ok := r.Update(ctx, "a", func(j *testJob) {
		j.Progress = 40
		j.Status = "generating"
	})
	require.True(t, ok)
	assert.Equal(t, 40, got.Progress)

	stored, _ := r.Get(ctx, "a")
	assert.Equal(t, "generating", stored.Status)
}

func TestMemoryRegistryUpdateUnknownIsLost(t *testing.T) {
	r := NewMemoryRegistry[testJob]("test")
	called := false

	_, ok := r.Update(context.Background(), "missing", func(j *testJob) { called = true })

	assert.False(t, ok)
	assert.False(t, called)
	assert.Equal(t, 0, r.Len())
}

func TestMemoryRegistryScheduleCleanup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[testJob]("test")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))

	r.ScheduleCleanup(ctx, "a", 20*time.Millisecond)

	_, ok := r.Get(ctx, "a")
	assert.True(t, ok, "job should survive until the delay elapses")

	require.Eventually(t, func() bool {
		_, ok := r.Get(ctx, "a")
		return !ok
	}, time.Second, 5*time.Millisecond)

	// The id can be reused after purge.
	assert.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))
}

func TestMemoryRegistryCleanupSparesRecreatedJob(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[testJob]("test")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a", Status: "done"}))
	r.ScheduleCleanup(ctx, "a", 20*time.Millisecond)

	r.Delete(ctx, "a")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a", Status: "running"}))

	time.Sleep(60 * time.Millisecond)
	got, ok := r.Get(ctx, "a")
	require.True(t, ok, "timer of the deleted job must not purge its replacement")
	assert.Equal(t, "running", got.Status)

	r.ScheduleCleanup(ctx, "a", 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := r.Get(ctx, "a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryRegistryCleanupOfUnknownJob(t *testing.T) {
	r := NewMemoryRegistry[testJob]("test")
	r.ScheduleCleanup(context.Background(), "missing", time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, r.Len())
}

func TestMemoryRegistrySnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[models.FileBatch]("files")
	require.NoError(t, r.Create(ctx, "b", models.FileBatch{
		UploadID: "b",
		Files:    []models.FileRecord{{ID: "f1", Status: models.FileStatusUploaded}},
	}))

	before, _ := r.Get(ctx, "b")
	r.Update(ctx, "b", func(b *models.FileBatch) {
		b.File("f1").Status = models.FileStatusProcessed
	})

	assert.Equal(t, models.FileStatusUploaded, before.Files[0].Status)
	after, _ := r.Get(ctx, "b")
	assert.Equal(t, models.FileStatusProcessed, after.Files[0].Status)
}

func TestMemoryRegistryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry[testJob]("test")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Update(ctx, "a", func(j *testJob) { j.Progress++ })
		}()
	}
	wg.Wait()

	got, _ := r.Get(ctx, "a")
	assert.Equal(t, 50, got.Progress)
}
