package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/fitplan/internal/models"
)

// DefaultOverFetch multiplies topK for the similarity search so that enough
// candidates survive the file filter.
const DefaultOverFetch = 5

// Retriever finds the chunks of selected files most relevant to a query.
type Retriever struct {
	embedder  Embedder
	store     VectorStore
	overFetch int
}

// NewRetriever creates a retriever with the default over-fetch factor.
func NewRetriever(embedder Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store, overFetch: DefaultOverFetch}
}

// Retrieve returns up to topK chunks belonging to fileIDs. Similarity
// search over topK*overFetch candidates runs first; when none of them
// belong to the files, chunks are looked up by file id directly.
func (r *Retriever) Retrieve(ctx context.Context, query string, fileIDs []string, topK int) ([]models.Chunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrValidation)
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrProvider, err)
	}

	candidates, err := r.store.SimilaritySearch(ctx, emb, topK*r.overFetch)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", ErrProvider, err)
	}

	wanted := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = struct{}{}
	}

	docs := make([]models.Chunk, 0, topK)
	for _, c := range candidates {
		if _, ok := wanted[chunkFileID(c)]; !ok {
			continue
		}
		docs = append(docs, c)
		if len(docs) == topK {
			break
		}
	}
	if len(docs) > 0 {
		slog.Debug("retrieved by similarity", "candidates", len(candidates), "kept", len(docs))
		return docs, nil
	}

	docs, err = r.store.FindByFileIDs(ctx, fileIDs, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup by file: %w", ErrProvider, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w for files %s", ErrNoDocumentsFound, strings.Join(fileIDs, ", "))
	}
	slog.Debug("retrieved by file id", "kept", len(docs))
	return docs, nil
}

func chunkFileID(c models.Chunk) string {
	if c.FileID != "" {
		return c.FileID
	}
	if id, ok := c.Metadata[models.MetaFileID].(string); ok {
		return id
	}
	return ""
}
