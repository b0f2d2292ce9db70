package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/services"
)

const TaskDocumentIngest = "document:ingest"

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
}

func NewDocumentIngestTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentIngestPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentIngest,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Enqueuer submits ingestion tasks to the asynq queue. It implements
// services.IngestEnqueuer.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueIngest(ctx context.Context, documentID string) error {
	task, err := NewDocumentIngestTask(documentID)
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	logger.Debug("Ingestion task enqueued", "task_id", info.ID, "document_id", documentID)
	return nil
}

// TaskProcessor handles queued tasks inside the worker process.
type TaskProcessor struct {
	documents *services.DocumentService
}

func NewTaskProcessor(documents *services.DocumentService) *TaskProcessor {
	return &TaskProcessor{documents: documents}
}

func (p *TaskProcessor) HandleDocumentIngest(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	id, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}

	logger.Info("Processing ingestion task", "document_id", payload.DocumentID)
	return p.documents.Ingest(ctx, id)
}

// RegisterHandlers wires task types to their handlers on the worker mux.
func (p *TaskProcessor) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDocumentIngest, p.HandleDocumentIngest)
}
