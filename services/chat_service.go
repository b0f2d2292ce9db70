package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/models"
	"ticketing-chatbot-platform/utils"
)

// AnswerGenerator produces a grounded answer from a question and a context
// block. Satisfied by ai.GeminiClient.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}

// ChatHistory is the persistence surface the chat pipeline needs. Satisfied
// by ChatStore.
type ChatHistory interface {
	Upsert(ctx context.Context, record *models.ChatRecord) error
	Get(ctx context.Context, id string) (*models.ChatRecord, error)
	Recent(ctx context.Context, limit int64) ([]models.ChatRecord, error)
}

// CorpusSource yields the retrieval corpus: every chunk of every completed
// document.
type CorpusSource interface {
	Chunks(ctx context.Context) ([]models.DocumentChunk, error)
}

// MongoCorpus is the production CorpusSource, with a short-lived cache in
// front of the chunk collection scan.
type MongoCorpus struct {
	chunks   *ChunkStore
	docs     *DocumentStore
	cache    *CacheService
	cacheTTL time.Duration
}

func NewMongoCorpus(chunks *ChunkStore, docs *DocumentStore, cache *CacheService, cacheTTL time.Duration) *MongoCorpus {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &MongoCorpus{chunks: chunks, docs: docs, cache: cache, cacheTTL: cacheTTL}
}

func (mc *MongoCorpus) Chunks(ctx context.Context) ([]models.DocumentChunk, error) {
	return GetOrCompute(ctx, mc.cache, chunkCorpusCachePrefix+"all", mc.cacheTTL,
		func(ctx context.Context) ([]models.DocumentChunk, error) {
			return mc.chunks.AllCompleted(ctx, mc.docs)
		})
}

// ChatOptions tunes retrieval and caching behavior.
type ChatOptions struct {
	QuestionSimilarityThreshold float64
	ChunkSimilarityThreshold    float64
	MaxContextChunks            int
	AnswerCacheTTL              time.Duration
	RecentChatLimit             int64
}

func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		QuestionSimilarityThreshold: 0.85,
		ChunkSimilarityThreshold:    0.3,
		MaxContextChunks:            5,
		AnswerCacheTTL:              12 * time.Hour,
		RecentChatLimit:             200,
	}
}

// noContextPlaceholder stands in for retrieved text when nothing in the
// corpus clears the similarity threshold. Generation still runs; the system
// instruction makes the model decline gracefully.
const noContextPlaceholder = "no relevant information found"

// ChatService answers questions through a layered pipeline: validation, exact
// answer cache, semantic question match, chunk retrieval, then generation.
type ChatService struct {
	validator *InputValidator
	embedder  Embedder
	generator AnswerGenerator
	history   ChatHistory
	corpus    CorpusSource
	cache     *CacheService
	opts      ChatOptions
}

func NewChatService(
	validator *InputValidator,
	embedder Embedder,
	generator AnswerGenerator,
	history ChatHistory,
	corpus CorpusSource,
	cache *CacheService,
	opts ChatOptions,
) *ChatService {
	if opts.MaxContextChunks <= 0 {
		opts.MaxContextChunks = 5
	}
	if opts.AnswerCacheTTL <= 0 {
		opts.AnswerCacheTTL = 12 * time.Hour
	}
	if opts.RecentChatLimit <= 0 {
		opts.RecentChatLimit = 200
	}

	return &ChatService{
		validator: validator,
		embedder:  embedder,
		generator: generator,
		history:   history,
		corpus:    corpus,
		cache:     cache,
		opts:      opts,
	}
}

// scoredChunk pairs a chunk with its similarity to the question.
type scoredChunk struct {
	chunk models.DocumentChunk
	score float64
}

// ProcessQuestion runs the full answering pipeline and returns the answer
// together with whether it was served from cache.
func (cs *ChatService) ProcessQuestion(ctx context.Context, question, conversationID string) (*models.AskResponse, error) {
	tracer := otel.Tracer("chat-service")
	ctx, span := tracer.Start(ctx, "chat.process_question")
	defer span.End()

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	sanitized, err := cs.validator.ValidateQuestion(question)
	if err != nil {
		span.SetAttributes(attribute.Bool("chat.rejected", true))
		return nil, err
	}

	questionHash := utils.QuestionHash(sanitized)
	cacheKey := utils.QuestionCacheKey(sanitized)
	span.SetAttributes(attribute.String("chat.question_hash", questionHash))

	// Layer 1: exact answer cache.
	var cached models.CachedAnswer
	if found, err := cs.cache.Get(ctx, cacheKey, &cached); err != nil {
		logger.Warn("Answer cache read failed", "error", err)
	} else if found {
		span.SetAttributes(attribute.String("chat.cache", "exact"))
		return cs.response(sanitized, cached.Answer, true, conversationID), nil
	}

	// Layer 1b: the chat store keys records by question hash, so an expired
	// cache entry can be rebuilt without embedding or generation.
	if record := cs.findStoredAnswer(ctx, questionHash); record != nil {
		span.SetAttributes(attribute.String("chat.cache", "store"))
		cs.cache.SetAsync(cacheKey, models.CachedAnswer{
			Question: sanitized,
			Answer:   record.Answer,
			CachedAt: time.Now(),
		}, cs.opts.AnswerCacheTTL)
		return cs.response(sanitized, record.Answer, true, conversationID), nil
	}

	embedding, err := cs.embedder.EmbedText(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	// Layer 2: semantic match against previously answered questions.
	if answer, matched := cs.findSimilarAnswer(ctx, embedding); matched {
		span.SetAttributes(attribute.String("chat.cache", "semantic"))
		cs.persistAsync(sanitized, answer, embedding, cacheKey)
		return cs.response(sanitized, answer, true, conversationID), nil
	}

	contextBlock, matches, err := cs.retrieveContext(ctx, embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to load retrieval corpus: %w", err)
	}
	span.SetAttributes(attribute.Int("chat.context_chunks", matches))

	cleanContext, err := cs.validator.ValidateContext(contextBlock)
	if err != nil {
		return nil, err
	}

	answer, err := cs.generator.GenerateAnswer(ctx, sanitized, cleanContext)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	cs.persistAsync(sanitized, answer, embedding, cacheKey)
	span.SetAttributes(attribute.String("chat.cache", "miss"))
	return cs.response(sanitized, answer, false, conversationID), nil
}

// findSimilarAnswer scans recent answered questions for one whose embedding
// clears the question similarity threshold. Errors degrade to "no match";
// the semantic layer is best-effort.
func (cs *ChatService) findSimilarAnswer(ctx context.Context, embedding []float32) (string, bool) {
	records, err := cs.history.Recent(ctx, cs.opts.RecentChatLimit)
	if err != nil {
		logger.Warn("Recent chat lookup failed", "error", err)
		return "", false
	}

	bestScore := 0.0
	bestAnswer := ""
	for _, record := range records {
		score := CosineSimilarity(embedding, record.QuestionEmbedding)
		if score > bestScore {
			bestScore = score
			bestAnswer = record.Answer
		}
	}

	if bestScore >= cs.opts.QuestionSimilarityThreshold && bestAnswer != "" {
		logger.Debug("Semantic question match", "score", bestScore)
		return bestAnswer, true
	}
	return "", false
}

// retrieveContext scores the whole corpus against the question embedding and
// assembles the top matches into a numbered context block. When nothing
// clears the threshold the placeholder is returned instead; a corpus load
// failure is an error, never a silent empty context. An answer produced
// against a placeholder caused by an outage would be cached and persisted as
// if it were correct.
func (cs *ChatService) retrieveContext(ctx context.Context, embedding []float32) (string, int, error) {
	chunks, err := cs.corpus.Chunks(ctx)
	if err != nil {
		return "", 0, err
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		score := CosineSimilarity(embedding, chunk.Embedding)
		if score >= cs.opts.ChunkSimilarityThreshold {
			scored = append(scored, scoredChunk{chunk: chunk, score: score})
		}
	}
	if len(scored) == 0 {
		return noContextPlaceholder, 0, nil
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > cs.opts.MaxContextChunks {
		scored = scored[:cs.opts.MaxContextChunks]
	}

	var block strings.Builder
	for i, sc := range scored {
		fmt.Fprintf(&block, "[%d] %s\n", i+1, sc.chunk.Content)
	}
	return strings.TrimSpace(block.String()), len(scored), nil
}

// findStoredAnswer looks up a previously answered question by its hash.
// Errors degrade to "no match"; the synchronous exact layer is the cache.
func (cs *ChatService) findStoredAnswer(ctx context.Context, questionHash string) *models.ChatRecord {
	record, err := cs.history.Get(ctx, questionHash)
	if err != nil {
		logger.Warn("Chat record lookup failed", "question_hash", questionHash, "error", err)
		return nil
	}
	return record
}

// persistAsync records the answered question and caches the answer without
// blocking the response. Both writes are log-only on failure.
func (cs *ChatService) persistAsync(question, answer string, embedding []float32, cacheKey string) {
	record := &models.ChatRecord{
		ID:                utils.QuestionHash(question),
		Question:          question,
		Answer:            answer,
		QuestionEmbedding: embedding,
		CreatedAt:         time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cs.history.Upsert(ctx, record); err != nil {
			logger.Warn("Chat record persistence failed", "question_hash", record.ID, "error", err)
		}
	}()

	cs.cache.SetAsync(cacheKey, models.CachedAnswer{
		Question: question,
		Answer:   answer,
		CachedAt: time.Now(),
	}, cs.opts.AnswerCacheTTL)
}

func (cs *ChatService) response(question, answer string, cached bool, conversationID string) *models.AskResponse {
	return &models.AskResponse{
		Question:       question,
		Answer:         answer,
		Cached:         cached,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	}
}
