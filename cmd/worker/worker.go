package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"ticketing-chatbot-platform/internal/ai"
	"ticketing-chatbot-platform/internal/config"
	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/internal/queue"
	"ticketing-chatbot-platform/services"
)

// The worker consumes ingestion tasks: extraction, chunking, and embedding
// run here instead of in the API process.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

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

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	cache := services.NewCacheService(redisClient)

	keyRing := ai.NewKeyRing(cfg.GeminiAPIKeys)
	logger.Info("API key ring initialized", "keys", keyRing.Len())
	embedder := ai.NewEmbeddingService(keyRing, cfg.EmbeddingsModel)

	docStore := services.NewDocumentStore(db)
	chunkStore := services.NewChunkStore(db)
	extractor := services.NewTextExtractor(cfg.MaxFileSize, cfg.AllowedExtensions)
	chunker := services.NewChunkingService(services.ChunkingConfig{
		MaxSize: cfg.MaxChunkSize,
		Overlap: cfg.ChunkOverlap,
		Method:  cfg.ChunkMethod,
		MinSize: cfg.MinChunkSize,
	})
	validator := services.NewInputValidator()

	// No enqueuer here: the worker is the consumer side of the queue.
	documentService := services.NewDocumentService(
		docStore, chunkStore, extractor, chunker, embedder, cache, validator, nil)

	connOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	mux := asynq.NewServeMux()
	processor := queue.NewTaskProcessor(documentService)
	processor.RegisterHandlers(mux)

	go func() {
		logger.Info("Worker starting")
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	srv.Shutdown()
	logger.Info("Worker exited")
}
