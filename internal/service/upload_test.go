package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(retention time.Duration) (*UploadTracker, *recordingHub) {
	pub := &recordingHub{}
	return NewUploadTracker(jobs.NewMemoryRegistry[models.UploadJob]("upload"), pub, retention, nil), pub
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{0, 100, 0},
		{1, 3, 33},
		{2, 3, 67},
		{100, 100, 100},
		{150, 100, 100},
		{10, 0, 0},
		{10, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.done, tt.total), "Percent(%d, %d)", tt.done, tt.total)
	}
}

func TestUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	tr, pub := newTracker(time.Hour)

	require.NoError(t, tr.Start(ctx, "u1", 200))
	assert.Empty(t, pub.all(), "start does not broadcast")

	tr.Progress(ctx, "u1", 50, 200)
	tr.Progress(ctx, "u1", 150, 200)
	tr.Progress(ctx, "u1", 100, 200) // late, out-of-order report
	tr.Complete(ctx, "u1", models.UploadResult{TotalBytes: 200, Files: []models.FileRecord{{ID: "f1"}}})

	msgs := pub.all()
	require.Len(t, msgs, 4)
	want := []int{25, 75, 75}
	for i, p := range want {
		assert.Equal(t, hub.Topic(hub.KindUpload, "u1"), msgs[i].topic)
		assert.Equal(t, models.EventUploadProgress, msgs[i].event)
		assert.Equal(t, p, msgs[i].payload.(models.UploadProgressEvent).Percent)
	}

	done := msgs[3].payload.(models.UploadCompleteEvent)
	assert.Equal(t, models.EventUploadComplete, msgs[3].event)
	assert.Equal(t, "u1", done.UploadID)
	assert.Equal(t, 100, done.Percent)
	assert.True(t, done.Completed)
	assert.Len(t, done.Files, 1)

	job, ok := tr.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, models.UploadStatusCompleted, job.Status)
}

func TestUploadDuplicateStart(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(time.Hour)

	require.NoError(t, tr.Start(ctx, "u1", 10))
	assert.ErrorIs(t, tr.Start(ctx, "u1", 10), jobs.ErrDuplicateJob)
}

func TestUploadUnknownSize(t *testing.T) {
	ctx := context.Background()
	tr, pub := newTracker(time.Hour)

	require.NoError(t, tr.Start(ctx, "u1", -1))
	tr.Progress(ctx, "u1", 4096, -1)
	tr.Progress(ctx, "u1", 8192, -1)

	for _, m := range pub.all() {
		assert.Equal(t, 0, m.payload.(models.UploadProgressEvent).Percent)
	}

	tr.Complete(ctx, "u1", models.UploadResult{TotalBytes: 8192})
	job, _ := tr.Get(ctx, "u1")
	assert.Equal(t, 100, job.Percent)
	assert.True(t, job.Completed)
}

func TestUploadSingleTerminalEvent(t *testing.T) {
	ctx := context.Background()
	tr, pub := newTracker(time.Hour)

	require.NoError(t, tr.Start(ctx, "u1", 10))
	tr.Fail(ctx, "u1", errors.New("unsupported media type"))
	tr.Complete(ctx, "u1", models.UploadResult{})
	tr.Fail(ctx, "u1", errors.New("again"))
	tr.Progress(ctx, "u1", 10, 10)

	assert.Equal(t, 1, pub.count(models.EventUploadError))
	assert.Equal(t, 0, pub.count(models.EventUploadComplete))
	assert.Equal(t, 0, pub.count(models.EventUploadProgress))

	payload, _ := pub.last(models.EventUploadError)
	ev := payload.(models.UploadErrorEvent)
	assert.Equal(t, "u1", ev.UploadID)
	assert.Equal(t, "unsupported media type", ev.Error)
}

func TestUploadUnknownIDIsIgnored(t *testing.T) {
	tr, pub := newTracker(time.Hour)

	tr.Progress(context.Background(), "ghost", 1, 2)
	tr.Complete(context.Background(), "ghost", models.UploadResult{})

	assert.Empty(t, pub.all())
}

func TestUploadRetention(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(20 * time.Millisecond)

	require.NoError(t, tr.Start(ctx, "u1", 1))
	tr.Complete(ctx, "u1", models.UploadResult{TotalBytes: 1})

	_, ok := tr.Get(ctx, "u1")
	require.True(t, ok, "finished sessions stay queryable during retention")

	require.Eventually(t, func() bool {
		_, ok := tr.Get(ctx, "u1")
		return !ok
	}, waitFor, tick)
}
