package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// UploadTracker records byte-level progress of upload sessions:
// initialized, then receiving, then completed or failed.
type UploadTracker struct {
	jobs      jobs.Registry[models.UploadJob]
	hub       hub.Publisher
	retention time.Duration
	metrics   *metrics.Prometheus
}

// NewUploadTracker creates a tracker. Finished sessions are kept for retention.
func NewUploadTracker(reg jobs.Registry[models.UploadJob], pub hub.Publisher, retention time.Duration, pm *metrics.Prometheus) *UploadTracker {
	return &UploadTracker{jobs: reg, hub: pub, retention: retention, metrics: pm}
}

// Start registers a new session with zero progress. Nothing is published.
func (t *UploadTracker) Start(ctx context.Context, id string, expected int64) error {
	now := time.Now()
	err := t.jobs.Create(ctx, id, models.UploadJob{
		ID:            id,
		Status:        models.UploadStatusInitialized,
		BytesExpected: expected,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("start upload %s: %w", id, err)
	}
	t.metrics.JobStarted(kindUpload)
	slog.Debug("upload started", "upload_id", id, "bytes_expected", expected)
	return nil
}

// Progress records received bytes and publishes uploadProgress. expected
// may be zero or negative when the total size is unknown; percent then
// stays 0 until Complete.
func (t *UploadTracker) Progress(ctx context.Context, id string, received, expected int64) {
	var changed bool
	job, ok := t.jobs.Update(ctx, id, func(j *models.UploadJob) {
		if j.Terminal() {
			return
		}
		changed = true
		j.Status = models.UploadStatusReceiving
		j.BytesReceived = received
		j.BytesExpected = expected
		if p := Percent(received, expected); p > j.Percent {
			j.Percent = p
		}
		j.UpdatedAt = time.Now()
	})
	if !ok || !changed {
		return
	}
	t.hub.Publish(hub.Topic(hub.KindUpload, id), models.EventUploadProgress, job.ProgressEvent())
}

// Complete merges result into the session, marks it completed and
// publishes uploadComplete. Later terminal calls are ignored.
func (t *UploadTracker) Complete(ctx context.Context, id string, result models.UploadResult) {
	var first bool
	job, ok := t.jobs.Update(ctx, id, func(j *models.UploadJob) {
		first = !j.Terminal()
		if !first {
			return
		}
		j.Status = models.UploadStatusCompleted
		j.Completed = true
		j.Percent = 100
		if result.TotalBytes > j.BytesReceived {
			j.BytesReceived = result.TotalBytes
		}
		j.Result = &result
		j.UpdatedAt = time.Now()
	})
	if !ok || !first {
		return
	}

	t.hub.Publish(hub.Topic(hub.KindUpload, id), models.EventUploadComplete, job.CompleteEvent())
	t.metrics.JobFinished(kindUpload, string(job.Status), time.Since(job.CreatedAt))
	t.jobs.ScheduleCleanup(ctx, id, t.retention)
	slog.Info("upload completed", "upload_id", id, "files", len(result.Files), "bytes", result.TotalBytes)
}

// Fail records err on the session and publishes uploadError. Failure is
// terminal; later terminal calls are ignored.
func (t *UploadTracker) Fail(ctx context.Context, id string, err error) {
	var first bool
	job, ok := t.jobs.Update(ctx, id, func(j *models.UploadJob) {
		first = !j.Terminal()
		if !first {
			return
		}
		j.Status = models.UploadStatusFailed
		j.Error = err.Error()
		j.UpdatedAt = time.Now()
	})
	if !ok || !first {
		return
	}

	t.hub.Publish(hub.Topic(hub.KindUpload, id), models.EventUploadError, job.ErrorEvent())
	t.metrics.JobFinished(kindUpload, string(job.Status), time.Since(job.CreatedAt))
	t.jobs.ScheduleCleanup(ctx, id, t.retention)
	slog.Warn("upload failed", "upload_id", id, "error", err)
}

// Get returns a snapshot of the session.
func (t *UploadTracker) Get(ctx context.Context, id string) (models.UploadJob, bool) {
	return t.jobs.Get(ctx, id)
}

// Percent returns round(done/total*100) clamped to 0..100, or 0 when total
// is not positive.
func Percent(done, total int64) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	p := int(math.Round(float64(done) / float64(total) * 100))
	return min(p, 100)
}
