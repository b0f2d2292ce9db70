package services

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"ticketing-chatbot-platform/utils"
)

// Input limits.
const (
	minQuestionLen = 3
	maxQuestionLen = 1000
	maxTitleLen    = 200
	maxContextLen  = 10000
)

// InputValidator is the first gate for every question; nothing downstream
// sees unsanitized input. Matching input is rejected whole - no partial
// sanitization of suspicious content is attempted.
type InputValidator struct {
	markupPatterns  []*regexp.Regexp
	sqlPatterns     []*regexp.Regexp
	shellPatterns   []*regexp.Regexp
	promptPatterns  []*regexp.Regexp
	whitespaceRegex *regexp.Regexp
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		markupPatterns: compileAll(
			`(?i)<\s*script`,
			`(?i)<\s*/?\s*(iframe|object|embed|svg|img|link|meta|form)`,
			`(?i)javascript\s*:`,
			`(?i)\bon(load|error|click|mouseover|focus|submit)\s*=`,
			`(?i)data\s*:\s*text/html`,
		),
		sqlPatterns: compileAll(
			`(?i)\bunion\s+(all\s+)?select\b`,
			`(?i)\bselect\b.+\bfrom\b`,
			`(?i)\binsert\s+into\b`,
			`(?i)\bdrop\s+(table|database|collection)\b`,
			`(?i)\bdelete\s+from\b`,
			`(?i)\bupdate\b.+\bset\b`,
			`(?i)(--|#|/\*).*(\bor\b|\band\b|=)`,
			`(?i)'\s*(or|and)\s+'?\d`,
		),
		shellPatterns: compileAll(
			"`[^`]*`",
			`\$\([^)]*\)`,
			`(?i)(;|\|\||&&)\s*(rm|cat|ls|wget|curl|chmod|bash|sh|nc|python)\b`,
			`(?i)\brm\s+-rf\b`,
			`(?i)>\s*/(etc|dev|var)/`,
		),
		promptPatterns: compileAll(
			// English role-override and instruction-disclosure attempts.
			`(?i)\bignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|messages?)`,
			`(?i)\bforget\s+(all\s+|your\s+)?(previous\s+|prior\s+)?(instructions?|rules?|training)`,
			`(?i)\bdisregard\s+(all\s+|the\s+)?(previous|prior|above|system)`,
			`(?i)\byou\s+are\s+(now|no\s+longer)\b`,
			`(?i)\b(act|behave)\s+as\s+(if|a|an)\b`,
			`(?i)\bpretend\s+(to\s+be|you\s+are)\b`,
			`(?i)\b(reveal|show|print|repeat)\b.{0,40}\b(system\s+(prompt|instructions?)|your\s+(prompt|instructions?|rules))`,
			`(?i)\bsystem\s*prompt\b`,
			`(?i)\bnew\s+instructions?\s*:`,
			`(?i)\bjailbreak\b`,
			// Vietnamese phrasings of the same attacks.
			`(?i)bỏ\s+qua\s+(các\s+|tất\s+cả\s+)?(hướng\s+dẫn|chỉ\s+dẫn|lệnh|quy\s+tắc)`,
			`(?i)quên\s+(các\s+|tất\s+cả\s+|mọi\s+)?(hướng\s+dẫn|chỉ\s+dẫn|quy\s+tắc)`,
			`(?i)bạn\s+(bây\s+giờ|giờ\s+đây)\s+là`,
			`(?i)đóng\s+vai\s+(là|một)`,
			`(?i)giả\s+vờ\s+(là|rằng)`,
			`(?i)(tiết\s+lộ|hiển\s+thị|cho\s+.{0,10}xem)\s+.{0,30}(hướng\s+dẫn|chỉ\s+dẫn)\s+(hệ\s+thống|của\s+bạn)`,
		),
		whitespaceRegex: regexp.MustCompile(`\s+`),
	}
}

// ValidateQuestion rejects empty, out-of-bounds, or suspicious question text
// and returns the sanitized text otherwise.
func (v *InputValidator) ValidateQuestion(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minQuestionLen {
		return "", utils.NewValidationError("question is too short")
	}
	if len(trimmed) > maxQuestionLen {
		return "", utils.NewValidationError("question is too long")
	}

	if v.matchesAny(trimmed, v.markupPatterns, v.sqlPatterns, v.shellPatterns, v.promptPatterns) {
		// Fail closed with a generic message; do not echo what matched.
		return "", utils.NewValidationError("question contains suspicious content")
	}

	return v.sanitize(trimmed), nil
}

// ValidateTitle applies the question sanitization with a shorter limit and
// only the most dangerous markup patterns.
func (v *InputValidator) ValidateTitle(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", utils.NewValidationError("title must not be empty")
	}
	if len(trimmed) > maxTitleLen {
		return "", utils.NewValidationError("title is too long")
	}

	if v.matchesAny(trimmed, v.markupPatterns) {
		return "", utils.NewValidationError("title contains suspicious content")
	}

	return v.sanitize(trimmed), nil
}

// ValidateContext sanitizes retrieved document text before it is handed to
// generation. Retrieved text is not user input, so only light cleanup is
// applied, but an oversized context is refused outright.
func (v *InputValidator) ValidateContext(text string) (string, error) {
	if len(text) > maxContextLen {
		return "", utils.NewValidationError("context exceeds maximum length")
	}

	cleaned := stripControlRunes(text)
	cleaned = v.whitespaceRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned), nil
}

func (v *InputValidator) sanitize(text string) string {
	escaped := html.EscapeString(text)
	escaped = stripControlRunes(escaped)
	escaped = v.whitespaceRegex.ReplaceAllString(escaped, " ")
	return strings.TrimSpace(escaped)
}

func (v *InputValidator) matchesAny(text string, groups ...[]*regexp.Regexp) bool {
	for _, group := range groups {
		for _, pattern := range group {
			if pattern.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func stripControlRunes(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}
