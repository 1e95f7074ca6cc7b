package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"ai-search-service/internal/ai"
	"ai-search-service/internal/config"
	"ai-search-service/internal/logger"
	"ai-search-service/internal/telemetry"
	"ai-search-service/internal/vectorstore/qdrant"
	"ai-search-service/middleware"
	"ai-search-service/routes"
	"ai-search-service/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is best-effort; the service runs without a collector
	shutdownTracer, err := telemetry.InitTracer("ai-search-service")
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

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Data access layer
	repo := services.NewMongoContentRepository(db)
	statuses := services.NewMongoIndexStatusStore(db)
	settings := services.NewMongoSettingsSource(db)
	history := services.NewMongoHistorySink(db)

	// Semantic path is optional: without provider credentials the
	// service serves keyword search only.
	var semantic *services.QueryPipeline
	if cfg.SemanticConfigured() {
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

		cacheTTL := time.Duration(settings.Load(context.Background()).CacheDurationHours) * time.Hour
		cached := ai.NewCachedEmbeddingClient(embedder, rdb, cfg.GoogleEmbeddingsModel, cacheTTL)

		store := qdrant.NewStore(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    time.Duration(cfg.QueryTimeout) * time.Second,
		})
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = store.Init(initCtx, cfg.VectorDimensions)
		cancel()
		if err != nil {
			log.Fatal("Failed to initialize vector store:", err)
		}

		semantic = services.NewQueryPipeline(cached, store, repo, services.QueryOptions{
			TopK:            cfg.VectorTopK,
			SnippetMaxChars: cfg.SnippetMaxChars,
			EmbedTimeout:    time.Duration(cfg.EmbedTimeout) * time.Second,
			QueryTimeout:    time.Duration(cfg.QueryTimeout) * time.Second,
			FetchTimeout:    time.Duration(cfg.FetchTimeout) * time.Second,
		})
	} else {
		logger.Warn("Semantic search not configured, running keyword-only")
	}

	keyword := services.NewKeywordSearch(repo)
	gateway := services.NewSearchGateway(settings, semantic, keyword, history, repo, metrics)

	// Asynq client for handing indexing work to the worker process
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"semantic":  cfg.SemanticConfigured(),
			"timestamp": time.Now(),
		})
	})

	routes.SetupSearchRoutes(router, routes.SearchDeps{
		Gateway:  gateway,
		Statuses: statuses,
		Settings: settings,
		History:  history,
		Repo:     repo,
		Queue:    queueClient,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
