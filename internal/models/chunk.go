package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Chunk metadata keys attached to every embedded fragment.
const (
	MetaFileID      = "fileId"
	MetaUploadID    = "uploadId"
	MetaSource      = "source"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
	MetaHeadingPath = "headingPath"
)

// Chunk is a persisted, embedded fragment of an uploaded document.
type Chunk struct {
	ID        surrealmodels.RecordID `json:"id"`
	FileID    string                 `json:"file_id"`
	UploadID  string                 `json:"upload_id"`
	Content   string                 `json:"content"`
	Position  int                    `json:"position"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
	Score     float64                `json:"score,omitempty"`
	CreatedAt time.Time              `json:"created,omitempty"`
}
