// Package memstore holds chunk vectors and generated plans in process
// memory. It backs development servers and service tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// VectorStore is an exhaustive cosine-similarity index over chunks.
type VectorStore struct {
	mu     sync.RWMutex
	chunks []models.Chunk
}

// NewVectorStore creates an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// AddChunks stores chunks. Chunks without an ID get a random one.
func (s *VectorStore) AddChunks(_ context.Context, chunks []models.Chunk) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d of file %s has no embedding", c.Position, c.FileID)
		}
		if c.ID.ID == nil {
			c.ID = surrealmodels.NewRecordID("chunk", uuid.NewString())
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Embedding = slices.Clone(c.Embedding)
		c.Metadata = cloneMeta(c.Metadata)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// SimilaritySearch returns up to k chunks ordered by descending cosine
// similarity to embedding.
func (s *VectorStore) SimilaritySearch(_ context.Context, embedding []float32, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]models.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Embedding) != len(embedding) {
			continue
		}
		c.Score = cosine(embedding, c.Embedding)
		c.Metadata = cloneMeta(c.Metadata)
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// FindByFileIDs returns up to limit chunks belonging to the given files
// in insertion order.
func (s *VectorStore) FindByFileIDs(_ context.Context, fileIDs []string, limit int) ([]models.Chunk, error) {
	if limit <= 0 || len(fileIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Chunk
	for _, c := range s.chunks {
		if !slices.Contains(fileIDs, c.FileID) {
			continue
		}
		c.Metadata = cloneMeta(c.Metadata)
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored chunks.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
