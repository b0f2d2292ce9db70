package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Upstream AI provider
	GeminiAPIKeys   []string
	GenerationModel string
	EmbeddingsModel string
	GeminiTier      string

	// Document ingestion
	FileStorageDir    string
	MaxFileSize       int64
	AllowedExtensions []string
	MaxChunkSize      int
	ChunkOverlap      int
	MinChunkSize      int
	ChunkMethod       string

	// Retrieval and answer caching
	QuestionSimilarityThreshold float64
	ChunkSimilarityThreshold    float64
	MaxContextChunks            int
	AnswerCacheTTLHours         int
	ChunkCacheTTLMinutes        int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Stale ingestion reaper
	ReaperIntervalMinutes int
	StaleProcessingMins   int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/ticketing_chatbot"),
		DBName:   getEnv("DB_NAME", "ticketing_chatbot"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKeys:   splitNonEmpty(getEnv("GEMINI_API_KEYS", "")),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		FileStorageDir:    getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 10485760), // 10MB
		AllowedExtensions: strings.Split(getEnv("ALLOWED_EXTENSIONS", ".txt,.md,.pdf,.xlsx"), ","),
		MaxChunkSize:      getEnvInt("MAX_CHUNK_SIZE", 800),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 100),
		MinChunkSize:      getEnvInt("MIN_CHUNK_SIZE", 50),
		ChunkMethod:       getEnv("CHUNK_METHOD", "sentence"),

		QuestionSimilarityThreshold: getEnvFloat64("QUESTION_SIMILARITY_THRESHOLD", 0.85),
		ChunkSimilarityThreshold:    getEnvFloat64("CHUNK_SIMILARITY_THRESHOLD", 0.3),
		MaxContextChunks:            getEnvInt("MAX_CONTEXT_CHUNKS", 5),
		AnswerCacheTTLHours:         getEnvInt("ANSWER_CACHE_TTL_HOURS", 12),
		ChunkCacheTTLMinutes:        getEnvInt("CHUNK_CACHE_TTL_MINUTES", 30),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		ReaperIntervalMinutes: getEnvInt("REAPER_INTERVAL_MINUTES", 15),
		StaleProcessingMins:   getEnvInt("STALE_PROCESSING_MINUTES", 60),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("GEMINI_API_KEYS is required - set it in .env file (comma-separated)")
	}

	return cfg, nil
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
