package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunksEmptyText(t *testing.T) {
	svc := NewChunkingService(DefaultChunkingConfig())

	assert.Nil(t, svc.SplitIntoChunks(""))
	assert.Nil(t, svc.SplitIntoChunks("   \n\t  "))
}

func TestSplitIntoChunksShortTextSingleChunk(t *testing.T) {
	// Below MinSize, the whole text still comes back as one chunk.
	svc := NewChunkingService(DefaultChunkingConfig())

	chunks := svc.SplitIntoChunks("Refunds take 5 days.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Refunds take 5 days.", chunks[0].Content)
	assert.Equal(t, 5, chunks[0].TokenCount)
}

func TestSplitIntoChunksSentenceMethod(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 200, Overlap: 80, Method: MethodSentence, MinSize: 20})

	sentence := "Tickets can be refunded up to two days before the event starts. "
	text := strings.Repeat(sentence, 12)

	chunks := svc.SplitIntoChunks(text)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 200)
		assert.GreaterOrEqual(t, len(c.Content), 20)
		assert.GreaterOrEqual(t, c.EndPos, c.StartPos)
	}

	// Consecutive chunks overlap: each one starts before the previous ends.
	for i := 1; i < len(chunks); i++ {
		assert.Less(t, chunks[i].StartPos, chunks[i-1].EndPos)
		assert.Greater(t, chunks[i].StartPos, chunks[i-1].StartPos)
	}
}

func TestSplitIntoChunksOversizedSentenceKept(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 100, Overlap: 20, Method: MethodSentence, MinSize: 10})

	long := strings.Repeat("a", 300) + "."
	chunks := svc.SplitIntoChunks(long)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(long), chunks[0].Content)
}

func TestSplitIntoChunksParagraphMethod(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 120, Overlap: 0, Method: MethodParagraph, MinSize: 10})

	text := "First paragraph about seat selection at checkout.\n\n" +
		"Second paragraph about e-ticket delivery by email.\n\n" +
		"Third paragraph about entry gates opening one hour early."

	chunks := svc.SplitIntoChunks(text)
	require.Greater(t, len(chunks), 1)
	assert.Contains(t, chunks[0].Content, "First paragraph")
	for _, c := range chunks {
		assert.NotContains(t, c.Content, "\n\n\n")
	}
}

func TestSplitIntoChunksFixedMethod(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 100, Overlap: 20, Method: MethodFixed, MinSize: 10})

	words := strings.Repeat("ticket refund policy window ", 20) // 560 chars
	chunks := svc.SplitIntoChunks(words)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 100)
	}
	// Windows advance by MaxSize-Overlap.
	assert.Equal(t, 80, chunks[1].StartPos-chunks[0].StartPos)
}

func TestSplitIntoChunksFixedDropsTinyTail(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 100, Overlap: 0, Method: MethodFixed, MinSize: 30})

	text := strings.Repeat("b", 100) + " tail"
	chunks := svc.SplitIntoChunks(text)
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Content, "tail")
}

func TestSplitIntoChunksFixedKeepsRunesWhole(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 101, Overlap: 0, Method: MethodFixed, MinSize: 1})

	// Two-byte runs with no whitespace force the window edge onto a rune
	// boundary rather than a byte boundary.
	text := strings.Repeat("đ", 200)
	chunks := svc.SplitIntoChunks(text)
	require.Greater(t, len(chunks), 1)

	total := 0
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content))
		total += utf8.RuneCountInString(c.Content)
	}
	assert.Equal(t, 200, total)
}

func TestNewChunkingServiceNormalizesConfig(t *testing.T) {
	svc := NewChunkingService(ChunkingConfig{MaxSize: 0, Overlap: 900, Method: ""})

	assert.Equal(t, 800, svc.cfg.MaxSize)
	assert.Equal(t, MethodSentence, svc.cfg.Method)
	assert.Less(t, svc.cfg.Overlap, svc.cfg.MaxSize)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abc"))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("abcde"))
}
