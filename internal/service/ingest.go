package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/parser"
)

// IngestDeps wires an IngestService.
type IngestDeps struct {
	Files     jobs.Registry[models.FileBatch]
	Runs      jobs.Registry[models.ProcessingJob]
	Hub       hub.Publisher
	Extractor TextExtractor
	Splitter  Splitter
	Embedder  Embedder
	Store     VectorStore
	Metrics   *metrics.Prometheus
	Timings   *metrics.Collector

	ChunkSize    int
	ChunkOverlap int
	Retention    time.Duration
}

// IngestService extracts, splits and embeds the files of an upload batch.
// Files are processed one at a time; a failed file does not stop the batch.
type IngestService struct {
	IngestDeps
}

// NewIngestService creates a new ingest service.
func NewIngestService(deps IngestDeps) *IngestService {
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = 1000
	}
	return &IngestService{IngestDeps: deps}
}

// RegisterBatch stores the file records of a finished upload.
func (s *IngestService) RegisterBatch(ctx context.Context, batch models.FileBatch) error {
	if err := s.Files.Create(ctx, batch.UploadID, batch); err != nil {
		return fmt.Errorf("register batch %s: %w", batch.UploadID, err)
	}
	return nil
}

// Batch returns the file records of an upload.
func (s *IngestService) Batch(ctx context.Context, uploadID string) (models.FileBatch, bool) {
	return s.Files.Get(ctx, uploadID)
}

// Status returns the latest processing run of an upload.
func (s *IngestService) Status(ctx context.Context, uploadID string) (models.ProcessingJob, bool) {
	return s.Runs.Get(ctx, uploadID)
}

// Start queues processing of every file of the batch that has not been
// ingested yet and returns immediately. A batch can only have one active run.
func (s *IngestService) Start(ctx context.Context, uploadID string) (models.ProcessingJob, error) {
	batch, ok := s.Files.Get(ctx, uploadID)
	if !ok {
		return models.ProcessingJob{}, fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
	}

	var pending []string
	for _, f := range batch.Files {
		if f.Status != models.FileStatusProcessed {
			pending = append(pending, f.ID)
		}
	}
	if len(pending) == 0 {
		return models.ProcessingJob{}, fmt.Errorf("%w: upload %s has no files to process", ErrValidation, uploadID)
	}

	if prev, exists := s.Runs.Get(ctx, uploadID); exists {
		if !prev.Terminal() {
			return models.ProcessingJob{}, fmt.Errorf("upload %s: %w", uploadID, ErrBusy)
		}
		s.Runs.Delete(ctx, uploadID)
	}

	now := time.Now()
	job := models.ProcessingJob{
		UploadID:     uploadID,
		ProcessingID: uuid.NewString(),
		Status:       models.ProcessingStatusQueued,
		TotalFiles:   len(pending),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Runs.Create(ctx, uploadID, job); err != nil {
		if errors.Is(err, jobs.ErrDuplicateJob) {
			return models.ProcessingJob{}, fmt.Errorf("upload %s: %w", uploadID, ErrBusy)
		}
		return models.ProcessingJob{}, fmt.Errorf("queue processing %s: %w", uploadID, err)
	}

	s.Metrics.JobStarted(kindProcessing)
	slog.Info("processing queued", "upload_id", uploadID, "processing_id", job.ProcessingID, "files", len(pending))

	go s.run(context.WithoutCancel(ctx), job, pending)
	return job, nil
}

func (s *IngestService) topic(uploadID string) string {
	return hub.Topic(hub.KindUpload, uploadID)
}

func (s *IngestService) run(ctx context.Context, job models.ProcessingJob, fileIDs []string) {
	uploadID, run := job.UploadID, job
	defer func() {
		if r := recover(); r != nil {
			slog.Error("processing goroutine panicked", "upload_id", uploadID, "panic", r)
			s.failBatch(ctx, run, fmt.Errorf("internal error: %v", r))
		}
	}()

	job, _ = s.Runs.Update(ctx, uploadID, func(j *models.ProcessingJob) {
		j.Status = models.ProcessingStatusProcessing
		j.UpdatedAt = time.Now()
	})
	s.Hub.Publish(s.topic(uploadID), models.EventProcessingStart, job.StartEvent())

	for i, fileID := range fileIDs {
		batch, ok := s.Files.Get(ctx, uploadID)
		if !ok {
			s.failBatch(ctx, run, fmt.Errorf("upload %s: %w", uploadID, ErrNotFound))
			return
		}
		file := batch.File(fileID)
		if file == nil {
			s.fileFailed(ctx, uploadID, models.FileRecord{ID: fileID}, fmt.Errorf("file %s: %w", fileID, ErrNotFound))
			continue
		}

		job, _ = s.Runs.Update(ctx, uploadID, func(j *models.ProcessingJob) {
			j.CurrentFile = file.OriginalName
			j.FileIndex = i + 1
			j.Percent = percentInt(j.ProcessedFiles+j.ErrorFiles, j.TotalFiles)
			j.UpdatedAt = time.Now()
		})
		s.Hub.Publish(s.topic(uploadID), models.EventProcessingProgress, job.ProgressEvent())
		s.setFile(ctx, uploadID, fileID, func(f *models.FileRecord) {
			f.Status = models.FileStatusProcessing
			f.Error = ""
		})

		chunks, chars, err := s.processFile(ctx, *file, func(done, total int) {
			ev := job.ProgressEvent()
			ev.EmbeddingProgress = percentInt(done, total)
			ev.FileProgress = ev.EmbeddingProgress
			s.Hub.Publish(s.topic(uploadID), models.EventProcessingProgress, ev)
		})
		if err != nil {
			s.fileFailed(ctx, uploadID, *file, err)
			continue
		}
		s.fileDone(ctx, uploadID, *file, chunks, chars)
	}

	s.completeBatch(ctx, run)
}

// processFile runs extract, split, embed and store for one file and
// returns the number of chunks and characters ingested.
func (s *IngestService) processFile(ctx context.Context, file models.FileRecord, onEmbed func(done, total int)) (int, int, error) {
	mediaType, err := parser.DetectType(file.OriginalName, file.DeclaredType)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	text, err := s.Extractor.Extract(ctx, file.Path, mediaType)
	if err != nil {
		return 0, 0, fmt.Errorf("extract %s: %w", file.OriginalName, err)
	}
	s.Timings.RecordTiming(metrics.OpTextExtract, time.Since(start))

	parts, err := s.Splitter.Split(text, s.ChunkSize, s.ChunkOverlap)
	if err != nil {
		return 0, 0, fmt.Errorf("split %s: %w", file.OriginalName, err)
	}
	if len(parts) == 0 {
		return 0, 0, fmt.Errorf("split %s: %w", file.OriginalName, parser.ErrNoText)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	lastReported := -1
	for j, part := range parts {
		vec, err := s.Embedder.Embed(ctx, part.Content)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: embed chunk %d of %s: %w", ErrProvider, j, file.OriginalName, err)
		}
		meta := map[string]any{
			models.MetaFileID:      file.ID,
			models.MetaUploadID:    file.UploadID,
			models.MetaSource:      file.OriginalName,
			models.MetaChunkIndex:  j,
			models.MetaTotalChunks: len(parts),
		}
		if part.HeadingPath != "" {
			meta[models.MetaHeadingPath] = part.HeadingPath
		}
		chunks = append(chunks, models.Chunk{
			FileID:    file.ID,
			UploadID:  file.UploadID,
			Content:   part.Content,
			Position:  j,
			Metadata:  meta,
			Embedding: vec,
		})

		if p := percentInt(j+1, len(parts)); p != lastReported {
			lastReported = p
			onEmbed(j+1, len(parts))
		}
	}

	if err := s.Store.AddChunks(ctx, chunks); err != nil {
		return 0, 0, fmt.Errorf("%w: store chunks of %s: %w", ErrProvider, file.OriginalName, err)
	}

	if file.Path != "" {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove ingested file", "path", file.Path, "error", err)
		}
	}

	return len(chunks), len(text), nil
}

func (s *IngestService) setFile(ctx context.Context, uploadID, fileID string, mutate func(*models.FileRecord)) {
	s.Files.Update(ctx, uploadID, func(b *models.FileBatch) {
		if f := b.File(fileID); f != nil {
			mutate(f)
		}
	})
}

func (s *IngestService) fileDone(ctx context.Context, uploadID string, file models.FileRecord, chunks, chars int) {
	s.setFile(ctx, uploadID, file.ID, func(f *models.FileRecord) {
		f.Status = models.FileStatusProcessed
		f.Chunks = chunks
		f.Characters = chars
		f.Path = ""
	})

	job, _ := s.Runs.Update(ctx, uploadID, func(j *models.ProcessingJob) {
		j.ProcessedFiles++
		j.TotalChunks += chunks
		j.TotalCharacters += chars
		j.Percent = percentInt(j.ProcessedFiles+j.ErrorFiles, j.TotalFiles)
		j.Results = append(j.Results, models.FileResult{
			FileID:     file.ID,
			FileName:   file.OriginalName,
			Status:     models.FileStatusProcessed,
			Chunks:     chunks,
			Characters: chars,
		})
		j.UpdatedAt = time.Now()
	})

	ev := job.ProgressEvent()
	ev.FileProgress = 100
	ev.EmbeddingProgress = 100
	s.Hub.Publish(s.topic(uploadID), models.EventProcessingProgress, ev)
	slog.Info("file processed", "upload_id", uploadID, "file_id", file.ID, "file", file.OriginalName, "chunks", chunks)
}

func (s *IngestService) fileFailed(ctx context.Context, uploadID string, file models.FileRecord, err error) {
	s.setFile(ctx, uploadID, file.ID, func(f *models.FileRecord) {
		f.Status = models.FileStatusError
		f.Error = err.Error()
	})

	job, _ := s.Runs.Update(ctx, uploadID, func(j *models.ProcessingJob) {
		j.ErrorFiles++
		j.Percent = percentInt(j.ProcessedFiles+j.ErrorFiles, j.TotalFiles)
		j.Results = append(j.Results, models.FileResult{
			FileID:   file.ID,
			FileName: file.OriginalName,
			Status:   models.FileStatusError,
			Error:    err.Error(),
		})
		j.UpdatedAt = time.Now()
	})

	s.Hub.Publish(s.topic(uploadID), models.EventProcessingError, models.ProcessingErrorEvent{
		UploadID:     uploadID,
		ProcessingID: job.ProcessingID,
		Status:       string(models.FileStatusError),
		Error:        err.Error(),
		FileID:       file.ID,
		FileName:     file.OriginalName,
	})
	slog.Warn("file processing failed", "upload_id", uploadID, "file_id", file.ID, "file", file.OriginalName, "error", err)
}

func (s *IngestService) completeBatch(ctx context.Context, run models.ProcessingJob) {
	job, ok := s.finish(ctx, run, func(j *models.ProcessingJob) {
		j.Status = models.ProcessingStatusCompleted
		if j.ErrorFiles > 0 {
			j.Status = models.ProcessingStatusPartiallyFailed
		}
		j.CurrentFile = ""
		j.Percent = 100
	})
	if !ok {
		return
	}

	s.Hub.Publish(s.topic(job.UploadID), models.EventProcessingComplete, job.CompleteEvent())
	s.Metrics.JobFinished(kindProcessing, string(job.Status), time.Since(job.CreatedAt))
	slog.Info("processing complete", "upload_id", job.UploadID, "processing_id", job.ProcessingID,
		"processed", job.ProcessedFiles, "errors", job.ErrorFiles, "chunks", job.TotalChunks)
}

func (s *IngestService) failBatch(ctx context.Context, run models.ProcessingJob, err error) {
	job, ok := s.finish(ctx, run, func(j *models.ProcessingJob) {
		j.Status = models.ProcessingStatusFailed
		j.Error = err.Error()
	})
	if !ok {
		return
	}

	s.Hub.Publish(s.topic(job.UploadID), models.EventProcessingError, job.ErrorEvent())
	s.Metrics.JobFinished(kindProcessing, string(job.Status), time.Since(job.CreatedAt))
	slog.Error("processing failed", "upload_id", job.UploadID, "processing_id", job.ProcessingID, "error", err)
}

// finish moves run into a terminal state and reports whether this call did
// it. Retention is scheduled while the run is still active: until then no
// retry can replace the record, so the timer only ever purges this run.
func (s *IngestService) finish(ctx context.Context, run models.ProcessingJob, mutate func(*models.ProcessingJob)) (models.ProcessingJob, bool) {
	cur, ok := s.Runs.Get(ctx, run.UploadID)
	if !ok || cur.ProcessingID != run.ProcessingID || cur.Terminal() {
		return models.ProcessingJob{}, false
	}
	s.Runs.ScheduleCleanup(ctx, run.UploadID, s.Retention)

	var first bool
	job, ok := s.Runs.Update(ctx, run.UploadID, func(j *models.ProcessingJob) {
		first = j.ProcessingID == run.ProcessingID && !j.Terminal()
		if !first {
			return
		}
		mutate(j)
		j.UpdatedAt = time.Now()
	})
	return job, ok && first
}

func percentInt(done, total int) int {
	return Percent(int64(done), int64(total))
}
