package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ticketing-chatbot-platform/models"
)

// DocumentStore persists document metadata in the documents collection.
type DocumentStore struct {
	col *mongo.Collection
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{col: db.Collection("documents")}
}

func (s *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context, limit, offset int64) ([]models.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// MarkCompleted transitions a document to COMPLETED with its chunk count.
// Status is terminal after this.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id primitive.ObjectID, chunkCount int) error {
	now := time.Now()
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       models.StatusCompleted,
			"chunk_count":  chunkCount,
			"processed_at": now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	return nil
}

// MarkFailed transitions a document to FAILED and records the reason.
func (s *DocumentStore) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	now := time.Now()
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": reason,
			"processed_at":  now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return nil
}

// FailStale marks documents stuck in PROCESSING longer than maxAge as FAILED
// and returns how many were updated.
func (s *DocumentStore) FailStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.col.UpdateMany(ctx,
		bson.M{"status": models.StatusProcessing, "created_at": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": "processing timed out",
			"processed_at":  time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale documents: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ChunkStore persists embedded chunks in the document_chunks collection.
type ChunkStore struct {
	col *mongo.Collection
}

func NewChunkStore(db *mongo.Database) *ChunkStore {
	return &ChunkStore{col: db.Collection("document_chunks")}
}

// InsertBatch stores the full chunk set of one document in a single call so a
// partial set never becomes visible.
func (s *ChunkStore) InsertBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = time.Now()
		}
		docs[i] = chunks[i]
	}

	if _, err := s.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert chunk batch: %w", err)
	}
	return nil
}

func (s *ChunkStore) ListByDocument(ctx context.Context, documentID primitive.ObjectID) ([]models.DocumentChunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}})
	cursor, err := s.col.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer cursor.Close(ctx)

	chunks := []models.DocumentChunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

// AllCompleted returns every chunk belonging to COMPLETED documents; this is
// the retrieval corpus for similarity search.
func (s *ChunkStore) AllCompleted(ctx context.Context, docStore *DocumentStore) ([]models.DocumentChunk, error) {
	cursor, err := docStore.col.Find(ctx, bson.M{"status": models.StatusCompleted},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list completed documents: %w", err)
	}

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			cursor.Close(ctx)
			return nil, fmt.Errorf("failed to decode document id: %w", err)
		}
		ids = append(ids, row.ID)
	}
	cursor.Close(ctx)
	if len(ids) == 0 {
		return nil, nil
	}

	chunkCursor, err := s.col.Find(ctx, bson.M{"document_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk corpus: %w", err)
	}
	defer chunkCursor.Close(ctx)

	chunks := []models.DocumentChunk{}
	if err := chunkCursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunk corpus: %w", err)
	}
	return chunks, nil
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID primitive.ObjectID) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return res.DeletedCount, nil
}

// ChatStore persists answered questions in the chats collection, keyed by
// question hash so repeats overwrite instead of piling up.
type ChatStore struct {
	col *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{col: db.Collection("chats")}
}

func (s *ChatStore) Upsert(ctx context.Context, record *models.ChatRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": record.ID},
		bson.M{"$set": record},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chat record: %w", err)
	}
	return nil
}

func (s *ChatStore) Get(ctx context.Context, id string) (*models.ChatRecord, error) {
	var record models.ChatRecord
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat record: %w", err)
	}
	return &record, nil
}

// Recent returns the latest answered questions with their embeddings, newest
// first; this is the corpus for semantic question matching.
func (s *ChatStore) Recent(ctx context.Context, limit int64) ([]models.ChatRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.ChatRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chat records: %w", err)
	}
	return records, nil
}
