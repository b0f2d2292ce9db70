package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/models"
)

// Embedder turns text into a vector. Satisfied by ai.EmbeddingService.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// IngestEnqueuer hands ingestion off to a background queue. When nil, the
// document service falls back to a detached goroutine.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, documentID string) error
}

// Cache key prefix for retrieval-corpus entries, invalidated whenever the
// corpus changes.
const chunkCorpusCachePrefix = "chunks:"

// DocumentService owns the document lifecycle: upload, background ingestion,
// lookup, and cascade delete.
type DocumentService struct {
	docs      *DocumentStore
	chunks    *ChunkStore
	extractor *TextExtractor
	chunker   *ChunkingService
	embedder  Embedder
	cache     *CacheService
	validator *InputValidator
	enqueuer  IngestEnqueuer
}

func NewDocumentService(
	docs *DocumentStore,
	chunks *ChunkStore,
	extractor *TextExtractor,
	chunker *ChunkingService,
	embedder Embedder,
	cache *CacheService,
	validator *InputValidator,
	enqueuer IngestEnqueuer,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		chunks:    chunks,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		cache:     cache,
		validator: validator,
		enqueuer:  enqueuer,
	}
}

// ProcessDocument registers an uploaded file and schedules its ingestion.
// The returned document is in PROCESSING state; chunking and embedding run in
// the background.
func (ds *DocumentService) ProcessDocument(ctx context.Context, title, sourceName, filePath string, sizeBytes int64) (*models.Document, error) {
	cleanTitle, err := ds.validator.ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	if err := ds.extractor.ValidateFile(filePath); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         primitive.NewObjectID(),
		Title:      cleanTitle,
		SourceName: sourceName,
		FilePath:   filePath,
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), "."),
		SizeBytes:  sizeBytes,
		Status:     models.StatusProcessing,
		CreatedAt:  time.Now(),
	}

	if err := ds.docs.Insert(ctx, doc); err != nil {
		return nil, err
	}

	ds.scheduleIngest(doc.ID)

	logger.Info("Document accepted for processing",
		"document_id", doc.ID.Hex(), "title", doc.Title, "file_type", doc.FileType)
	return doc, nil
}

func (ds *DocumentService) scheduleIngest(id primitive.ObjectID) {
	if ds.enqueuer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := ds.enqueuer.EnqueueIngest(ctx, id.Hex())
		if err == nil {
			return
		}
		logger.Warn("Failed to enqueue ingestion, falling back to in-process",
			"document_id", id.Hex(), "error", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := ds.Ingest(ctx, id); err != nil {
			logger.Error("Background ingestion failed", "document_id", id.Hex(), "error", err)
		}
	}()
}

// Ingest runs the full pipeline for one document: extract, chunk, embed each
// chunk in order, and store the chunk set atomically. Any failure marks the
// document FAILED and no partial chunks survive.
func (ds *DocumentService) Ingest(ctx context.Context, id primitive.ObjectID) error {
	doc, err := ds.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", id.Hex())
	}
	if doc.Status != models.StatusProcessing {
		// Terminal states never re-enter the pipeline.
		logger.Warn("Skipping ingestion for non-processing document",
			"document_id", id.Hex(), "status", doc.Status)
		return nil
	}

	start := time.Now()

	text, err := ds.extractor.ExtractText(doc.FilePath)
	if err != nil {
		return ds.fail(ctx, id, fmt.Sprintf("text extraction failed: %v", err))
	}

	pieces := ds.chunker.SplitIntoChunks(text)
	if len(pieces) == 0 {
		return ds.fail(ctx, id, "document produced no chunks")
	}

	chunks := make([]models.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := ds.embedder.EmbedText(ctx, piece.Content)
		if err != nil {
			return ds.fail(ctx, id, fmt.Sprintf("embedding failed at chunk %d: %v", i, err))
		}

		chunks = append(chunks, models.DocumentChunk{
			ID:         primitive.NewObjectID(),
			DocumentID: id,
			ChunkIndex: i,
			Content:    piece.Content,
			Embedding:  embedding,
			StartPos:   piece.StartPos,
			EndPos:     piece.EndPos,
			TokenCount: piece.TokenCount,
			CreatedAt:  time.Now(),
		})
	}

	if err := ds.chunks.InsertBatch(ctx, chunks); err != nil {
		return ds.fail(ctx, id, fmt.Sprintf("chunk storage failed: %v", err))
	}

	if err := ds.docs.MarkCompleted(ctx, id, len(chunks)); err != nil {
		return err
	}

	ds.invalidateCorpusCache()

	logger.Info("Document ingested",
		"document_id", id.Hex(), "chunks", len(chunks), "duration", time.Since(start).String())
	return nil
}

// fail records the FAILED state and removes any chunks written before the
// failure so retrieval never sees a half-ingested document.
func (ds *DocumentService) fail(ctx context.Context, id primitive.ObjectID, reason string) error {
	if deleted, err := ds.chunks.DeleteByDocument(ctx, id); err != nil {
		logger.Error("Failed to clean up partial chunks", "document_id", id.Hex(), "error", err)
	} else if deleted > 0 {
		logger.Warn("Discarded partial chunks after ingestion failure",
			"document_id", id.Hex(), "deleted", deleted)
	}

	if err := ds.docs.MarkFailed(ctx, id, reason); err != nil {
		logger.Error("Failed to mark document failed", "document_id", id.Hex(), "error", err)
	}

	logger.Error("Document ingestion failed", "document_id", id.Hex(), "reason", reason)
	return fmt.Errorf("ingestion failed for %s: %s", id.Hex(), reason)
}

func (ds *DocumentService) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	return ds.docs.Get(ctx, id)
}

func (ds *DocumentService) ListDocuments(ctx context.Context, limit, offset int64) ([]models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return ds.docs.List(ctx, limit, offset)
}

func (ds *DocumentService) GetDocumentChunks(ctx context.Context, id primitive.ObjectID) ([]models.DocumentChunk, error) {
	doc, err := ds.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return ds.chunks.ListByDocument(ctx, id)
}

// DeleteDocument removes chunks first, then the document, then the stored
// file, and finally invalidates retrieval caches. Order matters: a document
// without chunks is harmless, chunks without a document are not.
func (ds *DocumentService) DeleteDocument(ctx context.Context, id primitive.ObjectID) error {
	doc, err := ds.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	deleted, err := ds.chunks.DeleteByDocument(ctx, id)
	if err != nil {
		return err
	}

	if err := ds.docs.Delete(ctx, id); err != nil {
		return err
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove stored file", "path", doc.FilePath, "error", err)
		}
	}

	ds.invalidateCorpusCache()

	logger.Info("Document deleted", "document_id", id.Hex(), "chunks_deleted", deleted)
	return nil
}

func (ds *DocumentService) invalidateCorpusCache() {
	if !ds.cache.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ds.cache.InvalidatePattern(ctx, chunkCorpusCachePrefix+"*"); err != nil {
			logger.Warn("Chunk cache invalidation failed", "error", err)
		}
	}()
}
