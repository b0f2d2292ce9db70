package models

import "time"

// ChatRecord is a persisted question/answer pair. The ID is the content hash
// of the normalized question, so re-asking the same question upserts instead
// of duplicating.
type ChatRecord struct {
	ID                string    `bson:"_id" json:"id"`
	Question          string    `bson:"question" json:"question"`
	Answer            string    `bson:"answer" json:"answer"`
	QuestionEmbedding []float32 `bson:"question_embedding,omitempty" json:"-"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}

type AskRequest struct {
	Question       string `json:"question" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type AskResponse struct {
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Cached         bool      `json:"cached"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// CachedAnswer is the value stored under the exact-match question cache key.
type CachedAnswer struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	CachedAt time.Time `json:"cached_at"`
}
