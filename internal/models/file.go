package models

// FileStatus is the ingestion state of a single uploaded file.
type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusProcessing FileStatus = "processing"
	FileStatusProcessed  FileStatus = "processed"
	FileStatusError      FileStatus = "error"
)

// FileRecord describes one uploaded file and its ingestion outcome.
// Path points at the temporary copy on disk and is cleared once the
// file has been ingested and removed.
type FileRecord struct {
	ID           string            `json:"id"`
	UploadID     string            `json:"uploadId"`
	OriginalName string            `json:"originalName"`
	DeclaredType string            `json:"declaredType"`
	Path         string            `json:"path,omitempty"`
	Size         int64             `json:"size"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Status       FileStatus        `json:"status"`
	Error        string            `json:"error,omitempty"`
	Chunks       int               `json:"chunks"`
	Characters   int               `json:"characters"`
}

// FileBatch groups the files received by one upload.
type FileBatch struct {
	UploadID string       `json:"uploadId"`
	Files    []FileRecord `json:"files"`
}

// Clone returns a deep copy of the batch.
func (b FileBatch) Clone() FileBatch {
	files := make([]FileRecord, len(b.Files))
	for i, f := range b.Files {
		if f.Metadata != nil {
			meta := make(map[string]string, len(f.Metadata))
			for k, v := range f.Metadata {
				meta[k] = v
			}
			f.Metadata = meta
		}
		files[i] = f
	}
	return FileBatch{UploadID: b.UploadID, Files: files}
}

// File returns a pointer to the record with the given id, or nil.
func (b *FileBatch) File(id string) *FileRecord {
	for i := range b.Files {
		if b.Files[i].ID == id {
			return &b.Files[i]
		}
	}
	return nil
}

// FileResult summarizes the ingestion outcome of one file.
type FileResult struct {
	FileID     string     `json:"fileId"`
	FileName   string     `json:"fileName"`
	Status     FileStatus `json:"status"`
	Chunks     int        `json:"chunks"`
	Characters int        `json:"characters"`
	Error      string     `json:"error,omitempty"`
}
