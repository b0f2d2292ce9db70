package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunking methods.
const (
	MethodFixed     = "fixed"
	MethodSentence  = "sentence"
	MethodParagraph = "paragraph"
)

// ChunkingConfig defines how text is split into chunks.
type ChunkingConfig struct {
	MaxSize int    `json:"max_size"`
	Overlap int    `json:"overlap"`
	Method  string `json:"method"`
	MinSize int    `json:"min_size"`
}

// DefaultChunkingConfig is the configuration used for document ingestion.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{MaxSize: 800, Overlap: 100, Method: MethodSentence, MinSize: 50}
}

// TextChunk is one produced chunk with its covered range in the source text.
// Ranges of consecutive chunks may overlap by design.
type TextChunk struct {
	Content    string `json:"content"`
	StartPos   int    `json:"start_pos"`
	EndPos     int    `json:"end_pos"`
	TokenCount int    `json:"token_count"`
}

// segment is a sentence or paragraph with its position in the source text.
type segment struct {
	text  string
	start int
	end   int
}

// ChunkingService splits raw document text into overlapping chunks. Splitting
// is a pure function of the input text and the configuration.
type ChunkingService struct {
	cfg            ChunkingConfig
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func NewChunkingService(cfg ChunkingConfig) *ChunkingService {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 800
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxSize {
		cfg.Overlap = cfg.MaxSize / 4
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if cfg.Method == "" {
		cfg.Method = MethodSentence
	}

	return &ChunkingService{
		cfg:            cfg,
		sentenceRegex:  regexp.MustCompile(`[.!?]+\s+`),
		paragraphRegex: regexp.MustCompile(`\n\s*\n`),
	}
}

// SplitIntoChunks produces the ordered chunk sequence for text.
func (s *ChunkingService) SplitIntoChunks(text string) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []TextChunk
	switch s.cfg.Method {
	case MethodFixed:
		chunks = s.splitFixed(text)
	case MethodParagraph:
		chunks = s.accumulate(text, s.splitSegments(text, s.paragraphRegex), "\n\n")
	default:
		chunks = s.accumulate(text, s.splitSegments(text, s.sentenceRegex), " ")
	}

	// A document shorter than MinSize still yields its content as one chunk.
	if len(chunks) == 0 {
		trimmed := strings.TrimSpace(text)
		chunks = append(chunks, newChunk(trimmed, 0, len(text)))
	}
	return chunks
}

// splitFixed slides a MaxSize window over the text, backing off up to 50
// characters to break on whitespace, and advances by MaxSize-Overlap.
func (s *ChunkingService) splitFixed(text string) []TextChunk {
	step := s.cfg.MaxSize - s.cfg.Overlap
	if step <= 0 {
		step = s.cfg.MaxSize
	}

	var chunks []TextChunk
	for start := 0; start < len(text); start += step {
		end := start + s.cfg.MaxSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Prefer a whitespace boundary within the last 50 bytes.
			for i := end; i > end-50 && i > start; i-- {
				if isSpace(text[i-1]) {
					end = i
					break
				}
			}
			// Never cut a multi-byte rune at the window edge.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}

		begin := start
		for begin > 0 && !utf8.RuneStart(text[begin]) {
			begin--
		}

		content := strings.TrimSpace(text[begin:end])
		if len(content) >= s.cfg.MinSize {
			chunks = append(chunks, newChunk(content, begin, end))
		}

		if end == len(text) {
			break
		}
	}
	return chunks
}

// splitSegments splits text into sentences or paragraphs, keeping positions.
func (s *ChunkingService) splitSegments(text string, boundary *regexp.Regexp) []segment {
	var segments []segment
	cursor := 0
	for _, loc := range boundary.FindAllStringIndex(text, -1) {
		// The boundary match belongs to the left segment up to its trailing
		// whitespace (sentence punctuation stays with the sentence).
		raw := text[cursor:loc[1]]
		if seg, ok := trimSegment(raw, cursor); ok {
			segments = append(segments, seg)
		}
		cursor = loc[1]
	}
	if seg, ok := trimSegment(text[cursor:], cursor); ok {
		segments = append(segments, seg)
	}
	return segments
}

// accumulate gathers segments into a running buffer until the next segment
// would exceed MaxSize, emits the buffer, and seeds the next one with up to
// Overlap characters of trailing segments.
func (s *ChunkingService) accumulate(text string, segments []segment, sep string) []TextChunk {
	var chunks []TextChunk
	var buf []segment

	flush := func() {
		if len(buf) == 0 {
			return
		}
		content := joinSegments(buf, sep)
		if len(content) >= s.cfg.MinSize {
			chunks = append(chunks, newChunk(content, buf[0].start, buf[len(buf)-1].end))
		}
	}

	for _, seg := range segments {
		if len(buf) > 0 && joinedLen(buf, sep)+len(sep)+len(seg.text) > s.cfg.MaxSize {
			flush()

			// Walk backward segment-by-segment until the overlap budget is
			// exhausted; those segments open the next chunk.
			var seed []segment
			budget := 0
			for i := len(buf) - 1; i >= 0; i-- {
				l := len(buf[i].text)
				if budget+l > s.cfg.Overlap {
					break
				}
				budget += l
				seed = append([]segment{buf[i]}, seed...)
			}
			buf = seed
		}
		buf = append(buf, seg)
	}
	flush()

	return chunks
}

func trimSegment(raw string, offset int) (segment, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return segment{}, false
	}
	lead := strings.Index(raw, trimmed[:1])
	start := offset + lead
	return segment{text: trimmed, start: start, end: start + len(trimmed)}, true
}

func joinSegments(segments []segment, sep string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.text
	}
	return strings.Join(parts, sep)
}

func joinedLen(segments []segment, sep string) int {
	total := 0
	for i, seg := range segments {
		if i > 0 {
			total += len(sep)
		}
		total += len(seg.text)
	}
	return total
}

func newChunk(content string, start, end int) TextChunk {
	return TextChunk{
		Content:    content,
		StartPos:   start,
		EndPos:     end,
		TokenCount: estimateTokens(content),
	}
}

// estimateTokens approximates token usage as ceil(chars/4); no real tokenizer
// dependency is worth carrying for retrieval bookkeeping.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
