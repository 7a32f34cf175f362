package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/extract"
	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// Progress checkpoints of the generation pipeline.
const (
	progressRetrieving  = 15
	progressPrompting   = 30
	progressStreaming   = 40
	progressStreamLimit = 69
	progressParsing     = 70
	progressValidating  = 80
	progressSaving      = 90

	// streamStepChars is how much model output advances progress by one point.
	streamStepChars = 120
)

const noDocumentsMessage = "No relevant documents found for the selected files. Process the uploads before generating a plan."

// DefaultTopK is the number of chunks used as context when a request does not set one.
const DefaultTopK = 8

var requestValidate = extract.NewValidator()

// GenerateDeps wires a GenerationService.
type GenerateDeps struct {
	Jobs      jobs.Registry[models.GenerationJob]
	Hub       hub.Publisher
	Retriever *Retriever
	Model     Streamer
	Plans     PlanStore
	Metrics   *metrics.Prometheus

	TopK      int
	Retention time.Duration
}

// GenerationService synthesizes workout programs from ingested documents.
type GenerationService struct {
	GenerateDeps
}

// NewGenerationService creates a generation service.
func NewGenerationService(deps GenerateDeps) *GenerationService {
	if deps.TopK <= 0 {
		deps.TopK = DefaultTopK
	}
	return &GenerationService{GenerateDeps: deps}
}

// Generate validates req, registers an accepted job and starts the
// pipeline in the background. It returns as soon as the job exists.
func (s *GenerationService) Generate(ctx context.Context, req models.PlanRequest) (models.GenerationJob, error) {
	if err := requestValidate.Struct(req); err != nil {
		return models.GenerationJob{}, fmt.Errorf("%w: %s", ErrValidation, describeValidation(err))
	}
	if req.TopK == 0 {
		req.TopK = s.TopK
	}

	now := time.Now()
	job := models.GenerationJob{
		ID:        uuid.NewString(),
		Status:    models.GenerationStatusAccepted,
		Step:      models.StepAccepted,
		Message:   "Generation request accepted",
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Jobs.Create(ctx, job.ID, job); err != nil {
		return models.GenerationJob{}, fmt.Errorf("accept generation: %w", err)
	}

	s.Metrics.JobStarted(kindGeneration)
	slog.Info("generation accepted", "job_id", job.ID, "files", len(req.FileIDs), "top_k", req.TopK)

	go s.run(context.WithoutCancel(ctx), job.ID, req)
	return job, nil
}

// Job returns a snapshot of a generation job.
func (s *GenerationService) Job(ctx context.Context, id string) (models.GenerationJob, bool) {
	return s.Jobs.Get(ctx, id)
}

// Plan returns a persisted plan.
func (s *GenerationService) Plan(ctx context.Context, id string) (*models.PlanRecord, error) {
	rec, err := s.Plans.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get plan: %w", ErrProvider, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (s *GenerationService) run(ctx context.Context, id string, req models.PlanRequest) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("generation goroutine panicked", "job_id", id, "panic", r)
			s.fail(ctx, id, fmt.Errorf("internal error: %v", r))
		}
	}()

	s.step(ctx, id, progressRetrieving, models.StepRetrieving, "Retrieving relevant documents")
	docs, err := s.Retriever.Retrieve(ctx, retrievalQuery(req), req.FileIDs, req.TopK)
	if err != nil {
		s.fail(ctx, id, err)
		return
	}

	s.step(ctx, id, progressPrompting, models.StepPrompting, fmt.Sprintf("Building prompt from %d documents", len(docs)))
	prompt, err := buildUserPrompt(req, docs)
	if err != nil {
		s.fail(ctx, id, fmt.Errorf("build prompt: %w", err))
		return
	}

	s.step(ctx, id, progressStreaming, models.StepStreaming, "Generating program")
	received, reported := 0, progressStreaming
	text, err := s.Model.Stream(ctx, buildSystemPrompt(), prompt, func(chunk string) {
		received += len(chunk)
		if p := min(progressStreaming+received/streamStepChars, progressStreamLimit); p > reported {
			reported = p
			s.step(ctx, id, p, models.StepStreaming, "Generating program")
		}
	})
	if err != nil {
		s.fail(ctx, id, fmt.Errorf("%w: model stream: %w", ErrProvider, err))
		return
	}

	s.step(ctx, id, progressParsing, models.StepParsing, "Parsing model output")
	result := extract.ParseProgram(text)

	validated := "Program validated"
	if result.Fallback {
		validated = "Model output unusable, using the default program"
		s.Metrics.FallbackPlan()
		slog.Warn("generation used fallback program", "job_id", id, "strategy", result.Strategy, "reason", result.Err)
	}
	s.step(ctx, id, progressValidating, models.StepValidating, validated)

	s.step(ctx, id, progressSaving, models.StepSaving, "Saving program")
	rec, err := s.Plans.SavePlan(ctx, models.PlanRecord{
		JobID:    id,
		Program:  result.Program,
		Fallback: result.Fallback,
		FileIDs:  req.FileIDs,
	})
	if err != nil {
		s.fail(ctx, id, fmt.Errorf("%w: %w", ErrPersistence, err))
		return
	}

	s.complete(ctx, id, result, rec.ID)
}

// step records a non-terminal milestone and publishes generationProgress.
// Progress never moves backwards.
func (s *GenerationService) step(ctx context.Context, id string, progress int, step, message string) {
	var changed bool
	job, ok := s.Jobs.Update(ctx, id, func(j *models.GenerationJob) {
		if j.Terminal() || progress < j.Progress {
			return
		}
		changed = true
		j.Status = models.GenerationStatusGenerating
		j.Progress = progress
		j.Step = step
		j.Message = message
		j.UpdatedAt = time.Now()
	})
	if !ok || !changed {
		return
	}
	s.Hub.Publish(hub.Topic(hub.KindGeneration, id), models.EventGenerationProgress, job.ProgressEvent())
}

func (s *GenerationService) complete(ctx context.Context, id string, result extract.Result, planID string) {
	var first bool
	job, ok := s.Jobs.Update(ctx, id, func(j *models.GenerationJob) {
		first = !j.Terminal()
		if !first {
			return
		}
		program := result.Program
		j.Status = models.GenerationStatusCompleted
		j.Progress = 100
		j.Step = models.StepCompleted
		j.Message = result.Message()
		j.Result = &program
		j.PlanID = planID
		j.Fallback = result.Fallback
		if result.Err != nil {
			j.Error = result.Err.Error()
		}
		j.UpdatedAt = time.Now()
	})
	if !ok || !first {
		return
	}

	s.Hub.Publish(hub.Topic(hub.KindGeneration, id), models.EventGenerationComplete, job.CompleteEvent())
	s.Metrics.JobFinished(kindGeneration, string(job.Status), time.Since(job.CreatedAt))
	s.Jobs.ScheduleCleanup(ctx, id, s.Retention)
	slog.Info("generation completed", "job_id", id, "plan_id", planID, "fallback", result.Fallback)
}

func (s *GenerationService) fail(ctx context.Context, id string, err error) {
	msg := err.Error()
	if errors.Is(err, ErrNoDocumentsFound) {
		msg = noDocumentsMessage
	}

	var first bool
	job, ok := s.Jobs.Update(ctx, id, func(j *models.GenerationJob) {
		first = !j.Terminal()
		if !first {
			return
		}
		j.Status = models.GenerationStatusFailed
		j.Error = msg
		j.Message = ""
		j.UpdatedAt = time.Now()
	})
	if !ok || !first {
		return
	}

	s.Hub.Publish(hub.Topic(hub.KindGeneration, id), models.EventGenerationError, job.ErrorEvent())
	s.Metrics.JobFinished(kindGeneration, string(job.Status), time.Since(job.CreatedAt))
	s.Jobs.ScheduleCleanup(ctx, id, s.Retention)
	slog.Error("generation failed", "job_id", id, "step", job.Step, "category", Category(err), "error", err)
}

// describeValidation renders validator errors as "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), rule))
	}
	return strings.Join(parts, "; ")
}
