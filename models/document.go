package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing statuses. COMPLETED and FAILED are terminal; a
// document never re-enters PROCESSING.
const (
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Document is the metadata record for one uploaded knowledge-base file.
type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	SourceName   string             `bson:"source_name" json:"source_name"`
	FilePath     string             `bson:"file_path" json:"-"`
	FileType     string             `bson:"file_type" json:"file_type"`
	SizeBytes    int64              `bson:"size_bytes" json:"size_bytes"`
	Status       string             `bson:"status" json:"status"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ChunkCount   int                `bson:"chunk_count" json:"chunk_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	ProcessedAt  *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// DocumentChunk is one embedded slice of a document's text. Chunks of a
// document are written as a single batch and read back in chunk_index order.
type DocumentChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	ChunkIndex int                `bson:"chunk_index" json:"chunk_index"`
	Content    string             `bson:"content" json:"content"`
	Embedding  []float32          `bson:"embedding" json:"embedding,omitempty"`
	StartPos   int                `bson:"start_pos" json:"start_pos"`
	EndPos     int                `bson:"end_pos" json:"end_pos"`
	TokenCount int                `bson:"token_count" json:"token_count"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// UploadResponse is returned immediately after upload while ingestion runs
// in the background.
type UploadResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FileType string `json:"file_type"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}
