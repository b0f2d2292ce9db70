package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-chatbot-platform/utils"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newTestExtractor() *TextExtractor {
	return NewTextExtractor(1024, []string{".txt", ".md", ".pdf", ".xlsx"})
}

func TestValidateFileAcceptsSupportedTypes(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "faq.txt", "Gates open at 18:00.")

	assert.NoError(t, e.ValidateFile(path))
}

func TestValidateFileRejectsUnsupportedExtension(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "notes.docx", "content")

	err := e.ValidateFile(path)
	assert.ErrorIs(t, err, utils.ErrUnsupportedFileType)
}

func TestValidateFileRejectsOversizedFile(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "big.txt", strings.Repeat("x", 2048))

	err := e.ValidateFile(path)
	assert.ErrorIs(t, err, utils.ErrFileTooLarge)
}

func TestValidateFileMissingFile(t *testing.T) {
	e := newTestExtractor()

	err := e.ValidateFile(filepath.Join(t.TempDir(), "gone.txt"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrUnsupportedFileType)
}

func TestExtractTextPlainText(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "policy.txt", "Refunds close 48 hours before the event.")

	text, err := e.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "Refunds close 48 hours before the event.", text)
}

func TestExtractTextMarkdownStripsMarkers(t *testing.T) {
	e := newTestExtractor()
	md := "# Refund Policy\n\n" +
		"Tickets are **refundable** until 48h before.\n" +
		"See [the portal](https://example.com/portal) for details.\n" +
		"![diagram](flow.png)\n" +
		"```\ncode stays as-is\n```\n"
	path := writeTempFile(t, "policy.md", md)

	text, err := e.ExtractText(path)
	require.NoError(t, err)

	assert.Contains(t, text, "Refund Policy")
	assert.NotContains(t, text, "#")
	assert.Contains(t, text, "refundable")
	assert.NotContains(t, text, "**")
	assert.Contains(t, text, "the portal")
	assert.NotContains(t, text, "https://example.com")
	assert.NotContains(t, text, "diagram")
	assert.Contains(t, text, "code stays as-is")
	assert.NotContains(t, text, "```")
}

func TestExtractTextUnsupportedExtension(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "data.csv", "a,b,c")

	_, err := e.ExtractText(path)
	assert.ErrorIs(t, err, utils.ErrUnsupportedFileType)
}

func TestExtractTextInvalidPDF(t *testing.T) {
	e := newTestExtractor()
	path := writeTempFile(t, "broken.pdf", "not a pdf at all")

	_, err := e.ExtractText(path)
	assert.Error(t, err)
}
