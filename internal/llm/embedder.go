// Package llm provides chat streaming and embedding collaborators backed by langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/fitplan/internal/config"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/tmc/langchaingo/embeddings"
	bedrockembed "github.com/tmc/langchaingo/embeddings/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns chunk and query text into fixed-size vectors.
// Every vector is checked against the configured dimension so a model
// swap cannot silently corrupt the vector index.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	name      string
	metrics   *metrics.Collector
}

// NewEmbedder creates the embedder selected by cfg.EmbedProvider.
func NewEmbedder(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Embedder, error) {
	model, err := embeddingModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", cfg.EmbedProvider, err)
	}
	return NewEmbedderFrom(model, cfg.EmbedModel, cfg.EmbedDimension, mc), nil
}

func embeddingModel(ctx context.Context, cfg config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		client, err := ollama.New(ollama.WithModel(cfg.EmbedModel), ollama.WithServerURL(cfg.OllamaHost))
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(client)

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		client, err := openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithEmbeddingModel(cfg.EmbedModel))
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(client)

	case config.ProviderBedrock:
		client, err := newBedrockClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return bedrockembed.NewBedrock(bedrockembed.WithClient(client), bedrockembed.WithModel(cfg.EmbedModel))
	}
	return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbedProvider)
}

// NewEmbedderFrom wraps an already constructed langchaingo embedder.
func NewEmbedderFrom(model embeddings.Embedder, name string, dimension int, mc *metrics.Collector) *Embedder {
	return &Embedder{model: model, dimension: dimension, name: name, metrics: mc}
}

// Embed returns the vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.model.EmbedQuery(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("embedding failed", "model", e.name, "text_len", len(text), "duration_ms", elapsed.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", wrapFatalError(err))
	}
	e.metrics.RecordTiming(metrics.OpEmbedding, elapsed)

	if err := e.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch returns one vector per text, in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vecs, err := e.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", wrapFatalError(err))
	}
	e.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if err := e.check(v); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}
	return vecs, nil
}

func (e *Embedder) check(vec []float32) error {
	if len(vec) != e.dimension {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), e.dimension)
	}
	return nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.name
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}
