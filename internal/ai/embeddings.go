package ai

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// EmbeddingService turns text into a fixed-length vector via the Google
// Generative AI embedding models (text-embedding-004 by default), retrying
// across the key ring.
type EmbeddingService struct {
	ring  *KeyRing
	model string
}

func NewEmbeddingService(ring *KeyRing, model string) *EmbeddingService {
	if model == "" {
		model = "text-embedding-004"
	}
	return &EmbeddingService{ring: ring, model: model}
}

// EmbedText returns the embedding vector for the given text. When the
// upstream reports no embedding, an empty vector is returned with a nil
// error; callers treat that as "no signal" rather than a failure.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var values []float32

	err := s.ring.Retry(ctx, func(ctx context.Context, apiKey string) error {
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return err
		}
		defer client.Close()

		model := client.EmbeddingModel(s.model)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding != nil {
			values = resp.Embedding.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if values == nil {
		return []float32{}, nil
	}
	return values, nil
}
