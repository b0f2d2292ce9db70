package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing-chatbot-platform/internal/ai"
	"ticketing-chatbot-platform/internal/config"
	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/internal/queue"
	"ticketing-chatbot-platform/internal/telemetry"
	"ticketing-chatbot-platform/middleware"
	"ticketing-chatbot-platform/routes"
	"ticketing-chatbot-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is optional; without a collector the app runs untraced.
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("ticketing-chatbot-api", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Failed to initialize tracing", "error", err)
		} else {
			defer shutdown()
		}
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

	// Redis backs the answer cache, rate limiting, and the task queue. The
	// app degrades gracefully without it.
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache and rate limiting", "error", err)
		redisClient = nil
	}
	cache := services.NewCacheService(redisClient)

	// AI clients share one rotating key ring.
	keyRing := ai.NewKeyRing(cfg.GeminiAPIKeys)
	logger.Info("API key ring initialized", "keys", keyRing.Len())
	embedder := ai.NewEmbeddingService(keyRing, cfg.EmbeddingsModel)
	generator := ai.NewGeminiClient(keyRing, cfg.GenerationModel, cfg.GeminiTier)

	// Stores
	docStore := services.NewDocumentStore(db)
	chunkStore := services.NewChunkStore(db)
	chatStore := services.NewChatStore(db)

	// Background ingestion goes through asynq when Redis is up.
	var enqueuer services.IngestEnqueuer
	var queueClient *asynq.Client
	if redisClient != nil {
		if connOpt, err := queue.RedisConnOpt(cfg); err == nil {
			queueClient = asynq.NewClient(connOpt)
			defer queueClient.Close()
			enqueuer = queue.NewEnqueuer(queueClient)
		} else {
			logger.Warn("Failed to configure task queue, ingestion will run in-process", "error", err)
		}
	}

	extractor := services.NewTextExtractor(cfg.MaxFileSize, cfg.AllowedExtensions)
	chunker := services.NewChunkingService(services.ChunkingConfig{
		MaxSize: cfg.MaxChunkSize,
		Overlap: cfg.ChunkOverlap,
		Method:  cfg.ChunkMethod,
		MinSize: cfg.MinChunkSize,
	})
	validator := services.NewInputValidator()

	documentService := services.NewDocumentService(
		docStore, chunkStore, extractor, chunker, embedder, cache, validator, enqueuer)

	corpus := services.NewMongoCorpus(chunkStore, docStore, cache,
		time.Duration(cfg.ChunkCacheTTLMinutes)*time.Minute)
	chatService := services.NewChatService(validator, embedder, generator, chatStore, corpus, cache,
		services.ChatOptions{
			QuestionSimilarityThreshold: cfg.QuestionSimilarityThreshold,
			ChunkSimilarityThreshold:    cfg.ChunkSimilarityThreshold,
			MaxContextChunks:            cfg.MaxContextChunks,
			AnswerCacheTTL:              time.Duration(cfg.AnswerCacheTTLHours) * time.Hour,
			RecentChatLimit:             200,
		})

	// Documents stuck in PROCESSING are failed after a timeout.
	reaper := services.NewReaperService(docStore,
		time.Duration(cfg.ReaperIntervalMinutes)*time.Minute,
		time.Duration(cfg.StaleProcessingMins)*time.Minute)
	if err := reaper.Start(); err != nil {
		logger.Warn("Failed to start stale document reaper", "error", err)
	}
	defer reaper.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	if redisClient != nil {
		router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		docs := api.Group("/documents")
		{
			docs.POST("/upload", routes.HandleDocumentUpload(cfg, documentService))
			docs.GET("", routes.ListDocuments(documentService))
			docs.GET("/:id", routes.GetDocument(documentService))
			docs.GET("/:id/chunks", routes.GetDocumentChunks(documentService))
			docs.DELETE("/:id", routes.DeleteDocument(documentService))
		}

		api.POST("/chat/ask", routes.HandleAsk(chatService))
	}

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
