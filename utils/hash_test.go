package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionHashNormalizes(t *testing.T) {
	base := QuestionHash("How do I get a refund?")

	assert.Equal(t, base, QuestionHash("  How do I get a refund?  "))
	assert.Equal(t, base, QuestionHash("HOW DO I GET A REFUND?"))
	assert.NotEqual(t, base, QuestionHash("How do I change my seat?"))
	assert.Len(t, base, 64)
}

func TestQuestionCacheKey(t *testing.T) {
	key := QuestionCacheKey("How do I get a refund?")

	assert.Equal(t, "question:"+QuestionHash("How do I get a refund?"), key)
}
