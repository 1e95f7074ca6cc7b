package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embeddings configuration
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	GeminiTier            string
	VectorDimensions      int
	MaxEmbedChars         int
	EmbedBatchSize        int

	// Vector store (Qdrant)
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Indexing pipeline tuning. Provider-dependent limits, kept
	// configurable rather than hard-coded.
	UpsertBatchSize int
	IndexWorkers    int
	VectorTopK      int
	SnippetMaxChars int

	// Chunking
	ChunkOverlap       int
	ChunkSizeDefault   int
	ChunkSizeLongForm  int
	ChunkSizeShort     int
	ChunkSizeStructure int

	// External call timeouts (seconds)
	EmbedTimeout  int
	UpsertTimeout int
	QueryTimeout  int
	FetchTimeout  int

	// Scheduled re-sync of selected collections (hours, 0 disables)
	SyncIntervalHours int

	// Rate limiting (search API)
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/ai_search"),
		DBName:      getEnv("DB_NAME", "ai_search"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Embeddings
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		MaxEmbedChars:         getEnvInt("MAX_EMBED_CHARS", 8000),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 10),

		// Vector store
		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "content_chunks"),

		// Indexing
		UpsertBatchSize: getEnvInt("UPSERT_BATCH_SIZE", 100),
		IndexWorkers:    getEnvInt("INDEX_WORKERS", 4),
		VectorTopK:      getEnvInt("VECTOR_TOP_K", 50),
		SnippetMaxChars: getEnvInt("SNIPPET_MAX_CHARS", 500),

		// Chunking
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 50),
		ChunkSizeDefault:   getEnvInt("CHUNK_SIZE_DEFAULT", 500),
		ChunkSizeLongForm:  getEnvInt("CHUNK_SIZE_LONG_FORM", 600),
		ChunkSizeShort:     getEnvInt("CHUNK_SIZE_SHORT", 200),
		ChunkSizeStructure: getEnvInt("CHUNK_SIZE_STRUCTURED", 400),

		// Timeouts
		EmbedTimeout:  getEnvInt("EMBED_TIMEOUT", 30),
		UpsertTimeout: getEnvInt("UPSERT_TIMEOUT", 30),
		QueryTimeout:  getEnvInt("QUERY_TIMEOUT", 15),
		FetchTimeout:  getEnvInt("FETCH_TIMEOUT", 15),

		// Scheduled sync
		SyncIntervalHours: getEnvInt("SYNC_INTERVAL_HOURS", 0),

		// Rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Sanity checks. GEMINI_API_KEY and QDRANT_URL are deliberately not
	// required: without them the service runs in keyword-only mode.
	if cfg.ChunkOverlap >= cfg.ChunkSizeShort {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than the smallest chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSizeShort)
	}
	if cfg.UpsertBatchSize <= 0 || cfg.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("batch sizes must be positive")
	}
	if cfg.IndexWorkers <= 0 {
		cfg.IndexWorkers = 4
	}

	return cfg, nil
}

// SemanticConfigured reports whether both the embedding provider and the
// vector store have been configured.
func (c *Config) SemanticConfigured() bool {
	return c.GeminiAPIKey != "" && c.QdrantURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
