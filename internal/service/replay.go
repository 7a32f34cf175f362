package service

import (
	"context"

	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// Replayer builds the catch-up messages a new subscriber receives: the
// current job state as progress, or the terminal event once the job ended.
type Replayer struct {
	uploads     jobs.Registry[models.UploadJob]
	processing  jobs.Registry[models.ProcessingJob]
	generations jobs.Registry[models.GenerationJob]
}

// NewReplayer creates a replayer over the job registries.
func NewReplayer(uploads jobs.Registry[models.UploadJob], processing jobs.Registry[models.ProcessingJob], generations jobs.Registry[models.GenerationJob]) *Replayer {
	return &Replayer{uploads: uploads, processing: processing, generations: generations}
}

// Replay implements hub.Replayer.
func (r *Replayer) Replay(ctx context.Context, topic string) []hub.Message {
	kind, id, ok := hub.ParseTopic(topic)
	if !ok {
		return nil
	}

	switch kind {
	case hub.KindUpload:
		var msgs []hub.Message
		if job, ok := r.uploads.Get(ctx, id); ok {
			msgs = append(msgs, uploadSnapshot(job))
		}
		if job, ok := r.processing.Get(ctx, id); ok {
			msgs = append(msgs, processingSnapshot(job)...)
		}
		return msgs
	case hub.KindGeneration:
		if job, ok := r.generations.Get(ctx, id); ok {
			return []hub.Message{generationSnapshot(job)}
		}
	}
	return nil
}

func uploadSnapshot(job models.UploadJob) hub.Message {
	switch job.Status {
	case models.UploadStatusCompleted:
		return hub.Message{Event: models.EventUploadComplete, Data: job.CompleteEvent(), Terminal: true}
	case models.UploadStatusFailed:
		return hub.Message{Event: models.EventUploadError, Data: job.ErrorEvent(), Terminal: true}
	default:
		return hub.Message{Event: models.EventUploadProgress, Data: job.ProgressEvent()}
	}
}

func processingSnapshot(job models.ProcessingJob) []hub.Message {
	switch job.Status {
	case models.ProcessingStatusCompleted, models.ProcessingStatusPartiallyFailed:
		return []hub.Message{{Event: models.EventProcessingComplete, Data: job.CompleteEvent(), Terminal: true}}
	case models.ProcessingStatusFailed:
		return []hub.Message{{Event: models.EventProcessingError, Data: job.ErrorEvent(), Terminal: true}}
	default:
		return []hub.Message{
			{Event: models.EventProcessingStart, Data: job.StartEvent()},
			{Event: models.EventProcessingProgress, Data: job.ProgressEvent()},
		}
	}
}

func generationSnapshot(job models.GenerationJob) hub.Message {
	switch job.Status {
	case models.GenerationStatusCompleted:
		return hub.Message{Event: models.EventGenerationComplete, Data: job.CompleteEvent(), Terminal: true}
	case models.GenerationStatusFailed:
		return hub.Message{Event: models.EventGenerationError, Data: job.ErrorEvent(), Terminal: true}
	default:
		return hub.Message{Event: models.EventGenerationProgress, Data: job.ProgressEvent()}
	}
}
