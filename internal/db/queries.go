package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const chunkFields = `id, file_id, upload_id, content, position, metadata, created`

// AddChunks stores embedded chunks. Chunks without an ID get a random one.
func (c *Client) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	start := time.Now()
	defer func() { c.metrics.RecordTiming(metrics.OpPersist, time.Since(start)) }()

	sql := `
		UPSERT type::record("chunk", $id) SET
			file_id = $file_id,
			upload_id = $upload_id,
			content = $content,
			position = $position,
			metadata = $metadata,
			embedding = $embedding,
			created = IF created THEN created ELSE time::now() END
		RETURN NONE
	`

	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return fmt.Errorf("chunk %d of file %s has no embedding", ch.Position, ch.FileID)
		}
		id := uuid.NewString()
		if s, err := models.RecordIDString(ch.ID); err == nil && s != "" {
			id = s
		}
		metadata := ch.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}

		vars := map[string]any{
			"id":        id,
			"file_id":   ch.FileID,
			"upload_id": ch.UploadID,
			"content":   ch.Content,
			"position":  ch.Position,
			"metadata":  metadata,
			"embedding": ch.Embedding,
		}
		err := retryOnConflict(ctx, func() error {
			_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
			return wrapQueryError(err)
		})
		if err != nil {
			return fmt.Errorf("upsert chunk %d of file %s: %w", ch.Position, ch.FileID, err)
		}
	}
	return nil
}

// SimilaritySearch returns the k nearest chunks to embedding through the
// HNSW index. Score is cosine similarity.
func (c *Client) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return []models.Chunk{}, nil
	}
	start := time.Now()
	defer func() { c.metrics.RecordTiming(metrics.OpVectorSearch, time.Since(start)) }()

	// HNSW with ef=40 for better recall
	sql := fmt.Sprintf(`
		SELECT %s, (1 - vector::distance::knn()) AS score
		FROM chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
	`, chunkFields, k)

	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, sql, map[string]any{"emb": embedding})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.Chunk{}, nil
}

// FindByFileIDs returns up to limit chunks whose file_id is one of fileIDs.
func (c *Client) FindByFileIDs(ctx context.Context, fileIDs []string, limit int) ([]models.Chunk, error) {
	if limit <= 0 || len(fileIDs) == 0 {
		return []models.Chunk{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM chunk
		WHERE file_id IN $file_ids
		ORDER BY file_id, position
		LIMIT $limit
	`, chunkFields)

	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, sql, map[string]any{
		"file_ids": fileIDs,
		"limit":    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find chunks by file: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.Chunk{}, nil
}

// planRow is the stored shape of a plan record.
type planRow struct {
	ID       surrealmodels.RecordID `json:"id"`
	JobID    string                 `json:"job_id"`
	Program  models.WorkoutProgram  `json:"program"`
	Fallback bool                   `json:"fallback"`
	FileIDs  []string               `json:"file_ids"`
	Created  time.Time              `json:"created"`
}

func (r planRow) record() (*models.PlanRecord, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, err
	}
	return &models.PlanRecord{
		ID:        id,
		JobID:     r.JobID,
		Program:   r.Program,
		Fallback:  r.Fallback,
		FileIDs:   r.FileIDs,
		CreatedAt: r.Created,
	}, nil
}

// SavePlan upserts a generated plan, assigning an id when missing.
func (c *Client) SavePlan(ctx context.Context, rec models.PlanRecord) (models.PlanRecord, error) {
	start := time.Now()
	defer func() { c.metrics.RecordTiming(metrics.OpPersist, time.Since(start)) }()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	fileIDs := rec.FileIDs
	if fileIDs == nil {
		fileIDs = []string{}
	}

	sql := `
		UPSERT type::record("plan", $id) SET
			job_id = $job_id,
			program = $program,
			fallback = $fallback,
			file_ids = $file_ids,
			created = IF created THEN created ELSE time::now() END
		RETURN AFTER
	`

	var results *[]surrealdb.QueryResult[[]planRow]
	err := retryOnConflict(ctx, func() error {
		var err error
		results, err = surrealdb.Query[[]planRow](ctx, c.db, sql, map[string]any{
			"id":       rec.ID,
			"job_id":   rec.JobID,
			"program":  rec.Program,
			"fallback": rec.Fallback,
			"file_ids": fileIDs,
		})
		return wrapQueryError(err)
	})
	if err != nil {
		return models.PlanRecord{}, fmt.Errorf("save plan: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.PlanRecord{}, fmt.Errorf("save plan: no result returned")
	}

	saved, err := (*results)[0].Result[0].record()
	if err != nil {
		return models.PlanRecord{}, fmt.Errorf("save plan: %w", err)
	}
	return *saved, nil
}

// GetPlan retrieves a plan by ID.
// Returns nil if not found.
func (c *Client) GetPlan(ctx context.Context, id string) (*models.PlanRecord, error) {
	results, err := surrealdb.Query[[]planRow](ctx, c.db, `
		SELECT * FROM type::record("plan", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].record()
}
