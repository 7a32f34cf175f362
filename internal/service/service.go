// Package service runs the fitplan background pipelines: upload tracking,
// document ingestion and plan generation. Every pipeline records its state
// in a job registry and reports milestones to the notification hub.
package service

import (
	"context"

	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/parser"
)

// TextExtractor turns a stored file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path, mediaType string) (string, error)
}

// Splitter breaks text into ordered fragments.
type Splitter interface {
	Split(text string, size, overlap int) ([]parser.Chunk, error)
}

// Embedder produces an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore holds embedded chunks.
type VectorStore interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.Chunk, error)
	FindByFileIDs(ctx context.Context, fileIDs []string, limit int) ([]models.Chunk, error)
}

// PlanStore persists generated plans.
type PlanStore interface {
	SavePlan(ctx context.Context, rec models.PlanRecord) (models.PlanRecord, error)
	GetPlan(ctx context.Context, id string) (*models.PlanRecord, error)
}

// Streamer sends a prompt to a chat model and blocks until the full
// response has been received. onChunk may be nil.
type Streamer interface {
	Stream(ctx context.Context, system, prompt string, onChunk func(string)) (string, error)
}

// Job kinds used for metrics labels.
const (
	kindUpload     = "upload"
	kindProcessing = "processing"
	kindGeneration = "generation"
)
