package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"ai-search-service/internal/ai"
	"ai-search-service/internal/config"
	"ai-search-service/internal/logger"
	"ai-search-service/internal/queue"
	"ai-search-service/internal/telemetry"
	"ai-search-service/internal/vectorstore/qdrant"
	"ai-search-service/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if !cfg.SemanticConfigured() {
		log.Fatal("Worker requires GEMINI_API_KEY and QDRANT_URL; nothing to index without them")
	}

	shutdownTracer, err := telemetry.InitTracer("ai-search-worker")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Connect to Redis (embedding cache)
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Embeddings client
	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, ai.GeminiOptions{
		Model:     cfg.GoogleEmbeddingsModel,
		Tier:      cfg.GeminiTier,
		BatchSize: cfg.EmbedBatchSize,
		MaxChars:  cfg.MaxEmbedChars,
		Timeout:   time.Duration(cfg.EmbedTimeout) * time.Second,
	})
	if err != nil {
		log.Fatal("Failed to initialize embeddings client:", err)
	}
	defer embedder.Close()

	settings := services.NewMongoSettingsSource(db)
	cacheTTL := time.Duration(settings.Load(context.Background()).CacheDurationHours) * time.Hour
	cached := ai.NewCachedEmbeddingClient(embedder, rdb, cfg.GoogleEmbeddingsModel, cacheTTL)

	// Vector store
	store := qdrant.NewStore(qdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Timeout:    time.Duration(cfg.UpsertTimeout) * time.Second,
	})
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Init(initCtx, cfg.VectorDimensions)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize vector store:", err)
	}

	// Indexing pipeline
	repo := services.NewMongoContentRepository(db)
	statuses := services.NewMongoIndexStatusStore(db)
	counts := services.NewMongoChunkCountStore(db)
	chunker := services.NewChunkerService(services.ChunkSizes{
		Default:    cfg.ChunkSizeDefault,
		LongForm:   cfg.ChunkSizeLongForm,
		Structured: cfg.ChunkSizeStructure,
		Short:      cfg.ChunkSizeShort,
		Overlap:    cfg.ChunkOverlap,
	})
	pipeline, err := services.NewIndexPipeline(repo, chunker, cached, store, statuses, counts, metrics, services.IndexerOptions{
		UpsertBatchSize: cfg.UpsertBatchSize,
		Workers:         cfg.IndexWorkers,
		SnippetMaxChars: cfg.SnippetMaxChars,
		EmbedTimeout:    time.Duration(cfg.EmbedTimeout) * time.Second,
		UpsertTimeout:   time.Duration(cfg.UpsertTimeout) * time.Second,
		FetchTimeout:    time.Duration(cfg.FetchTimeout) * time.Second,
	})
	if err != nil {
		log.Fatal("Failed to create index pipeline:", err)
	}
	defer pipeline.Close()

	// Periodic re-sync of the selected collections
	scheduler := services.NewSyncScheduler(pipeline, settings)
	if err := scheduler.Start(time.Duration(cfg.SyncIntervalHours) * time.Hour); err != nil {
		log.Fatal("Failed to start sync scheduler:", err)
	}
	defer scheduler.Stop()

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.IndexWorkers,
			Queues: map[string]int{
				"indexing": 6, // full collection runs
				"default":  3, // single-record updates
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexCollection, processor.ProcessIndexCollection)
	mux.HandleFunc(queue.TaskIndexContent, processor.ProcessIndexContent)

	logger.Info("Starting indexing worker",
		"concurrency", cfg.IndexWorkers,
		"redis", redisOpt.Addr)

	// Run handles SIGINT/SIGTERM itself and drains in-flight tasks
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
