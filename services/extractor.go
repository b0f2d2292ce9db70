package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/utils"
)

// TextExtractor converts stored files of supported formats into plain text.
type TextExtractor struct {
	maxFileSize int64
	allowedExts map[string]bool

	mdHeaderRegex   *regexp.Regexp
	mdLinkRegex     *regexp.Regexp
	mdImageRegex    *regexp.Regexp
	mdEmphasisRegex *regexp.Regexp
	mdCodeRegex     *regexp.Regexp
}

func NewTextExtractor(maxFileSize int64, allowedExts []string) *TextExtractor {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20 // 10MB
	}
	exts := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(strings.TrimSpace(ext))] = true
	}

	return &TextExtractor{
		maxFileSize: maxFileSize,
		allowedExts: exts,

		mdHeaderRegex:   regexp.MustCompile(`^#{1,6}\s+`),
		mdLinkRegex:     regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`),
		mdImageRegex:    regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`),
		mdEmphasisRegex: regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)`),
		mdCodeRegex:     regexp.MustCompile("`{1,3}"),
	}
}

// ValidateFile fails fast before any extraction work is attempted.
func (e *TextExtractor) ValidateFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.allowedExts[ext] {
		return fmt.Errorf("%w: %s", utils.ErrUnsupportedFileType, ext)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() > e.maxFileSize {
		return fmt.Errorf("%w: %d bytes", utils.ErrFileTooLarge, stat.Size())
	}

	return nil
}

// ExtractText dispatches by extension and returns the file's plain text.
func (e *TextExtractor) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return e.extractPlainText(path)
	case ".md":
		return e.extractMarkdown(path)
	case ".pdf":
		return e.extractPDF(path)
	case ".xlsx":
		return e.extractXLSX(path)
	default:
		return "", fmt.Errorf("%w: %s", utils.ErrUnsupportedFileType, filepath.Ext(path))
	}
}

func (e *TextExtractor) extractPlainText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(content), nil
}

// extractMarkdown strips markdown markers line by line; the content itself is
// preserved.
func (e *TextExtractor) extractMarkdown(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown file: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		line = e.mdImageRegex.ReplaceAllString(line, "")
		line = e.mdLinkRegex.ReplaceAllString(line, "$1")
		line = e.mdHeaderRegex.ReplaceAllString(line, "")
		line = e.mdEmphasisRegex.ReplaceAllString(line, "")
		line = e.mdCodeRegex.ReplaceAllString(line, "")
		out = append(out, line)
	}

	return strings.Join(out, "\n"), nil
}

func (e *TextExtractor) extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	var textBuilder strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return extracted, nil
}

// extractXLSX joins cell text row by row, sheet by sheet.
func (e *TextExtractor) extractXLSX(path string) (string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer workbook.Close()

	var textBuilder strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			logger.Warn("Failed to read worksheet", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return "", fmt.Errorf("no text extracted from workbook")
	}
	return extracted, nil
}
