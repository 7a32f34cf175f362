package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/fitplan/internal/config"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model streams chat completions from the configured provider and records
// token usage per call.
type Model struct {
	llm     llms.Model
	name    string
	metrics *metrics.Collector
}

// NewModel creates the chat model selected by cfg.LLMProvider.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	model, err := chatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", cfg.LLMProvider, err)
	}
	return NewModelFrom(model, cfg.LLMModel, mc), nil
}

func chatModel(ctx context.Context, cfg config.Config) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.New(ollama.WithModel(cfg.LLMModel), ollama.WithServerURL(cfg.OllamaHost))

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		return openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.LLMModel))

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required")
		}
		return anthropic.New(anthropic.WithToken(cfg.AnthropicAPIKey), anthropic.WithModel(cfg.LLMModel))

	case config.ProviderBedrock:
		client, err := newBedrockClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return bedrock.New(bedrock.WithClient(client), bedrock.WithModel(cfg.LLMModel))
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
}

// NewModelFrom wraps an already constructed langchaingo model.
func NewModelFrom(model llms.Model, name string, mc *metrics.Collector) *Model {
	return &Model{llm: model, name: name, metrics: mc}
}

func newBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.name
}

// Stream sends a system and user prompt and blocks until the response is
// complete. onChunk, when set, receives each text fragment as it arrives.
// The full text is returned.
func (m *Model) Stream(ctx context.Context, system, prompt string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var streamed strings.Builder
	stream := llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		streamed.Write(chunk)
		if onChunk != nil {
			onChunk(string(chunk))
		}
		return nil
	})

	slog.Debug("llm stream started", "model", m.name, "prompt_len", len(prompt))
	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages, stream)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("llm stream failed", "model", m.name, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("stream: %w", wrapFatalError(err))
	}

	text := streamed.String()
	var in, out int64
	if len(resp.Choices) > 0 {
		if text == "" {
			text = resp.Choices[0].Content
		}
		in, out = tokenUsage(resp.Choices[0].GenerationInfo)
	}
	m.metrics.RecordLLMUsage(metrics.OpLLMStream, duration, in, out)

	slog.Debug("llm stream complete", "model", m.name, "response_len", len(text),
		"duration_ms", duration.Milliseconds(), "input_tokens", in, "output_tokens", out)
	return text, nil
}

// tokenUsage reads token counts from provider generation info. Providers
// name these fields differently.
func tokenUsage(info map[string]any) (in, out int64) {
	pick := func(keys ...string) int64 {
		for _, k := range keys {
			switch v := info[k].(type) {
			case int:
				return int64(v)
			case int32:
				return int64(v)
			case int64:
				return v
			case float64:
				return int64(v)
			}
		}
		return 0
	}
	in = pick("PromptTokens", "InputTokens", "input_tokens", "prompt_eval_count")
	out = pick("CompletionTokens", "OutputTokens", "output_tokens", "eval_count")
	return in, out
}
