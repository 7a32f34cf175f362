// Package models defines the job, file, plan and event types shared by fitplan packages.
package models

import "time"

// UploadStatus is the lifecycle state of an upload session.
type UploadStatus string

const (
	UploadStatusInitialized UploadStatus = "initialized"
	UploadStatusReceiving   UploadStatus = "receiving"
	UploadStatusCompleted   UploadStatus = "completed"
	UploadStatusFailed      UploadStatus = "failed"
)

// UploadJob tracks bytes received for one upload batch.
type UploadJob struct {
	ID            string        `json:"uploadId"`
	Status        UploadStatus  `json:"status"`
	BytesReceived int64         `json:"bytesReceived"`
	BytesExpected int64         `json:"bytesExpected"`
	Percent       int           `json:"percent"`
	Completed     bool          `json:"completed"`
	Error         string        `json:"error,omitempty"`
	Result        *UploadResult `json:"result,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// UploadResult is the metadata merged into an upload job on completion.
type UploadResult struct {
	Files      []FileRecord `json:"files"`
	TotalBytes int64        `json:"totalBytes"`
}

// Terminal reports whether the upload reached completed or failed.
func (j UploadJob) Terminal() bool {
	return j.Status == UploadStatusCompleted || j.Status == UploadStatusFailed
}

// ProcessingStatus is the lifecycle state of an ingestion batch.
type ProcessingStatus string

const (
	ProcessingStatusQueued          ProcessingStatus = "queued"
	ProcessingStatusProcessing      ProcessingStatus = "processing"
	ProcessingStatusCompleted       ProcessingStatus = "completed"
	ProcessingStatusPartiallyFailed ProcessingStatus = "partially_failed"
	ProcessingStatusFailed          ProcessingStatus = "failed"
)

// ProcessingJob tracks ingestion of every file in one upload batch.
// It is keyed by the upload id; ProcessingID identifies the individual run.
type ProcessingJob struct {
	UploadID        string           `json:"uploadId"`
	ProcessingID    string           `json:"processingId"`
	Status          ProcessingStatus `json:"status"`
	TotalFiles      int              `json:"totalFiles"`
	ProcessedFiles  int              `json:"processedFiles"`
	ErrorFiles      int              `json:"errorFiles"`
	CurrentFile     string           `json:"currentFile,omitempty"`
	FileIndex       int              `json:"fileIndex"`
	Percent         int              `json:"percent"`
	TotalChunks     int              `json:"totalChunks"`
	TotalCharacters int              `json:"totalCharacters"`
	Results         []FileResult     `json:"results,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Terminal reports whether the batch finished, successfully or not.
func (j ProcessingJob) Terminal() bool {
	switch j.Status {
	case ProcessingStatusCompleted, ProcessingStatusPartiallyFailed, ProcessingStatusFailed:
		return true
	}
	return false
}

// GenerationStatus is the lifecycle state of a plan generation job.
type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "queued"
	GenerationStatusAccepted   GenerationStatus = "accepted"
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// Generation steps reported in progress events.
const (
	StepAccepted   = "accepted"
	StepRetrieving = "retrieving"
	StepPrompting  = "prompting"
	StepStreaming  = "streaming"
	StepParsing    = "parsing"
	StepValidating = "validating"
	StepSaving     = "saving"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// GenerationJob tracks one workout plan synthesis.
type GenerationJob struct {
	ID        string           `json:"jobId"`
	Status    GenerationStatus `json:"status"`
	Progress  int              `json:"progress"`
	Step      string           `json:"step"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Request   PlanRequest      `json:"request"`
	Result    *WorkoutProgram  `json:"result,omitempty"`
	PlanID    string           `json:"planId,omitempty"`
	Fallback  bool             `json:"fallback"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Terminal reports whether generation completed or failed.
func (j GenerationJob) Terminal() bool {
	return j.Status == GenerationStatusCompleted || j.Status == GenerationStatusFailed
}

// PlanRequest is the user input for a generation job.
type PlanRequest struct {
	FileIDs     []string `json:"fileIds" validate:"required,min=1,dive,required"`
	Goal        string   `json:"goal,omitempty" validate:"max=500"`
	Level       string   `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	DaysPerWeek int      `json:"daysPerWeek,omitempty" validate:"omitempty,min=1,max=7"`
	Equipment   []string `json:"equipment,omitempty" validate:"omitempty,max=20"`
	TopK        int      `json:"topK,omitempty" validate:"omitempty,min=1,max=50"`
}

// Clone returns a copy that shares no slices with j.
func (j UploadJob) Clone() UploadJob {
	if j.Result != nil {
		r := *j.Result
		r.Files = FileBatch{Files: r.Files}.Clone().Files
		j.Result = &r
	}
	return j
}

// Clone returns a copy that shares no slices with j.
func (j ProcessingJob) Clone() ProcessingJob {
	if j.Results != nil {
		j.Results = append([]FileResult(nil), j.Results...)
	}
	return j
}
