package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// QuestionHash returns a deterministic id for a question: the SHA-256 of the
// lower-cased, trimmed text. Identical questions collide on purpose so the
// chat store and the answer cache de-duplicate.
func QuestionHash(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// QuestionCacheKey is the exact-match answer cache key for a question.
func QuestionCacheKey(question string) string {
	return "question:" + QuestionHash(question)
}
