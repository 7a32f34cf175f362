package models

// Event names delivered to subscribers.
const (
	EventUploadProgress     = "uploadProgress"
	EventUploadComplete     = "uploadComplete"
	EventUploadError        = "uploadError"
	EventProcessingStart    = "processingStart"
	EventProcessingProgress = "processingProgress"
	EventProcessingComplete = "processingComplete"
	EventProcessingError    = "processingError"
	EventGenerationProgress = "generationProgress"
	EventGenerationComplete = "generationComplete"
	EventGenerationError    = "generationError"
)

// UploadProgressEvent reports bytes received so far.
type UploadProgressEvent struct {
	UploadID      string `json:"uploadId"`
	Percent       int    `json:"percent"`
	BytesReceived int64  `json:"bytesReceived"`
	BytesExpected int64  `json:"bytesExpected"`
}

// UploadCompleteEvent is the terminal success event of an upload.
type UploadCompleteEvent struct {
	UploadID   string       `json:"uploadId"`
	Status     UploadStatus `json:"status"`
	Completed  bool         `json:"completed"`
	Percent    int          `json:"percent"`
	Files      []FileRecord `json:"files,omitempty"`
	TotalBytes int64        `json:"totalBytes"`
}

// UploadErrorEvent is the terminal failure event of an upload.
type UploadErrorEvent struct {
	UploadID string       `json:"uploadId"`
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error"`
}

// ProcessingStartEvent opens an ingestion batch.
type ProcessingStartEvent struct {
	UploadID     string           `json:"uploadId"`
	ProcessingID string           `json:"processingId"`
	Status       ProcessingStatus `json:"status"`
	TotalFiles   int              `json:"totalFiles"`
}

// ProcessingProgressEvent reports per-file and per-chunk ingestion progress.
type ProcessingProgressEvent struct {
	UploadID          string           `json:"uploadId"`
	ProcessingID      string           `json:"processingId"`
	Status            ProcessingStatus `json:"status"`
	Percent           int              `json:"percent"`
	ProcessedFiles    int              `json:"processedFiles"`
	TotalFiles        int              `json:"totalFiles"`
	CurrentFile       string           `json:"currentFile,omitempty"`
	FileIndex         int              `json:"fileIndex"`
	FileProgress      int              `json:"fileProgress"`
	EmbeddingProgress int              `json:"embeddingProgress"`
}

// ProcessingCompleteEvent closes an ingestion batch, even when files failed.
type ProcessingCompleteEvent struct {
	UploadID        string           `json:"uploadId"`
	ProcessingID    string           `json:"processingId"`
	Status          ProcessingStatus `json:"status"`
	ProcessedFiles  int              `json:"processedFiles"`
	ErrorFiles      int              `json:"errorFiles"`
	TotalFiles      int              `json:"totalFiles"`
	TotalChunks     int              `json:"totalChunks"`
	TotalCharacters int              `json:"totalCharacters"`
	Results         []FileResult     `json:"results"`
}

// ProcessingErrorEvent reports a failed file, or a failed batch when FileID is empty.
type ProcessingErrorEvent struct {
	UploadID     string `json:"uploadId"`
	ProcessingID string `json:"processingId"`
	Status       string `json:"status"`
	Error        string `json:"error"`
	FileID       string `json:"fileId,omitempty"`
	FileName     string `json:"fileName,omitempty"`
}

// GenerationProgressEvent reports a generation step.
type GenerationProgressEvent struct {
	JobID    string           `json:"jobId"`
	Status   GenerationStatus `json:"status"`
	Progress int              `json:"progress"`
	Step     string           `json:"step"`
	Message  string           `json:"message,omitempty"`
}

// GenerationCompleteEvent carries the final program. Fallback is true when
// the model output could not be used and the built-in program was returned.
type GenerationCompleteEvent struct {
	JobID    string           `json:"jobId"`
	Status   GenerationStatus `json:"status"`
	Progress int              `json:"progress"`
	Step     string           `json:"step"`
	Result   *WorkoutProgram  `json:"result"`
	PlanID   string           `json:"planId,omitempty"`
	Fallback bool             `json:"fallback"`
	Message  string           `json:"message"`
	Error    string           `json:"error,omitempty"`
}

// GenerationErrorEvent is the terminal failure event of a generation job.
type GenerationErrorEvent struct {
	JobID  string           `json:"jobId"`
	Status GenerationStatus `json:"status"`
	Step   string           `json:"step"`
	Error  string           `json:"error"`
}

// ProgressEvent builds the uploadProgress payload for the job's current state.
func (j UploadJob) ProgressEvent() UploadProgressEvent {
	return UploadProgressEvent{
		UploadID:      j.ID,
		Percent:       j.Percent,
		BytesReceived: j.BytesReceived,
		BytesExpected: j.BytesExpected,
	}
}

// CompleteEvent builds the uploadComplete payload.
func (j UploadJob) CompleteEvent() UploadCompleteEvent {
	ev := UploadCompleteEvent{
		UploadID:  j.ID,
		Status:    UploadStatusCompleted,
		Completed: true,
		Percent:   j.Percent,
	}
	if j.Result != nil {
		ev.Files = j.Result.Files
		ev.TotalBytes = j.Result.TotalBytes
	}
	return ev
}

// ErrorEvent builds the uploadError payload.
func (j UploadJob) ErrorEvent() UploadErrorEvent {
	return UploadErrorEvent{UploadID: j.ID, Status: UploadStatusFailed, Error: j.Error}
}

// StartEvent builds the processingStart payload.
func (j ProcessingJob) StartEvent() ProcessingStartEvent {
	return ProcessingStartEvent{
		UploadID:     j.UploadID,
		ProcessingID: j.ProcessingID,
		Status:       ProcessingStatusProcessing,
		TotalFiles:   j.TotalFiles,
	}
}

// ProgressEvent builds a processingProgress payload from the batch counters.
func (j ProcessingJob) ProgressEvent() ProcessingProgressEvent {
	return ProcessingProgressEvent{
		UploadID:       j.UploadID,
		ProcessingID:   j.ProcessingID,
		Status:         j.Status,
		Percent:        j.Percent,
		ProcessedFiles: j.ProcessedFiles + j.ErrorFiles,
		TotalFiles:     j.TotalFiles,
		CurrentFile:    j.CurrentFile,
		FileIndex:      j.FileIndex,
	}
}

// CompleteEvent builds the processingComplete payload.
func (j ProcessingJob) CompleteEvent() ProcessingCompleteEvent {
	results := j.Results
	if results == nil {
		results = []FileResult{}
	}
	return ProcessingCompleteEvent{
		UploadID:        j.UploadID,
		ProcessingID:    j.ProcessingID,
		Status:          j.Status,
		ProcessedFiles:  j.ProcessedFiles,
		ErrorFiles:      j.ErrorFiles,
		TotalFiles:      j.TotalFiles,
		TotalChunks:     j.TotalChunks,
		TotalCharacters: j.TotalCharacters,
		Results:         results,
	}
}

// ErrorEvent builds the batch-level processingError payload.
func (j ProcessingJob) ErrorEvent() ProcessingErrorEvent {
	return ProcessingErrorEvent{
		UploadID:     j.UploadID,
		ProcessingID: j.ProcessingID,
		Status:       string(ProcessingStatusFailed),
		Error:        j.Error,
	}
}

// ProgressEvent builds the generationProgress payload.
func (j GenerationJob) ProgressEvent() GenerationProgressEvent {
	return GenerationProgressEvent{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Step:     j.Step,
		Message:  j.Message,
	}
}

// CompleteEvent builds the generationComplete payload.
func (j GenerationJob) CompleteEvent() GenerationCompleteEvent {
	ev := GenerationCompleteEvent{
		JobID:    j.ID,
		Status:   GenerationStatusCompleted,
		Progress: 100,
		Step:     StepCompleted,
		Result:   j.Result,
		PlanID:   j.PlanID,
		Fallback: j.Fallback,
		Message:  j.Message,
	}
	if j.Fallback {
		ev.Error = j.Error
	}
	return ev
}

// ErrorEvent builds the generationError payload.
func (j GenerationJob) ErrorEvent() GenerationErrorEvent {
	return GenerationErrorEvent{JobID: j.ID, Status: GenerationStatusFailed, Step: j.Step, Error: j.Error}
}
