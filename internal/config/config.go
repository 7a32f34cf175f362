// Package config loads fitplan configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Backend names for job registries and stores.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendSurreal = "surreal"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerPort     string
	UploadDir      string
	MaxUploadBytes int64

	// Job registry
	RegistryBackend string
	RedisURL        string
	JobRetention    time.Duration

	// Vector + plan store
	StoreBackend string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Chat model
	LLMProvider Provider
	LLMModel    string

	// Embeddings
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int

	// Provider credentials
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Ingestion and retrieval
	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServerPort:     getEnv("FITPLAN_SERVER_PORT", "8484"),
		UploadDir:      getEnv("FITPLAN_UPLOAD_DIR", filepath.Join(os.TempDir(), "fitplan-uploads")),
		MaxUploadBytes: int64(getEnvInt("FITPLAN_MAX_UPLOAD_MB", 50)) << 20,

		RegistryBackend: getEnv("FITPLAN_REGISTRY", BackendMemory),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JobRetention:    getEnvDuration("FITPLAN_JOB_RETENTION", time.Hour),

		StoreBackend: getEnv("FITPLAN_STORE", BackendMemory),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "fitplan"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "plans"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider: Provider(getEnv("FITPLAN_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:    getEnv("FITPLAN_LLM_MODEL", "llama3.1"),

		EmbedProvider:  Provider(getEnv("FITPLAN_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("FITPLAN_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("FITPLAN_EMBED_DIMENSION", 384),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		ChunkSize:    getEnvInt("FITPLAN_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("FITPLAN_CHUNK_OVERLAP", 200),
		RetrievalK:   getEnvInt("FITPLAN_RETRIEVAL_K", 8),

		LogFile:  getEnv("FITPLAN_LOG_FILE", "/tmp/fitplan.log"),
		LogLevel: parseLogLevel(getEnv("FITPLAN_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
