package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ticketing-chatbot-platform/internal/config"
	"ticketing-chatbot-platform/models"
	"ticketing-chatbot-platform/services"
	"ticketing-chatbot-platform/utils"
)

// HandleDocumentUpload accepts a multipart upload, stores the file, and
// registers it for background ingestion. The response is returned while the
// document is still PROCESSING.
func HandleDocumentUpload(cfg *config.Config, documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		uploadDir := filepath.Join(cfg.FileStorageDir, "documents")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, fmt.Sprintf("%s%s", uuid.NewString(), ext))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		doc, err := documents.ProcessDocument(c.Request.Context(), title, header.Filename, filePath, header.Size)
		if err != nil {
			os.Remove(filePath)
			switch {
			case utils.IsValidationError(err):
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
			case errors.Is(err, utils.ErrUnsupportedFileType):
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "File type is not supported", nil)
			case errors.Is(err, utils.ErrFileTooLarge):
				utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			default:
				utils.RespondWithInternalError(c, "Failed to register document", nil)
			}
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       doc.ID.Hex(),
			Title:    doc.Title,
			FileType: doc.FileType,
			Status:   doc.Status,
			Message:  "Document accepted for processing",
		})
	}
}

// ListDocuments returns document metadata newest first with pagination.
func ListDocuments(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseQueryInt(c, "limit", 20)
		offset := parseQueryInt(c, "offset", 0)

		docs, err := documents.ListDocuments(c.Request.Context(), int64(limit), int64(offset))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"count":     len(docs),
		})
	}
}

// GetDocument returns one document's metadata including its current status.
func GetDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseDocumentID(c)
		if !ok {
			return
		}

		doc, err := documents.GetDocument(c.Request.Context(), id)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// GetDocumentChunks returns a document's chunks in ingestion order, without
// embeddings.
func GetDocumentChunks(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseDocumentID(c)
		if !ok {
			return
		}

		chunks, err := documents.GetDocumentChunks(c.Request.Context(), id)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve chunks", nil)
			return
		}
		if chunks == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		type chunkView struct {
			ID         string `json:"id"`
			ChunkIndex int    `json:"chunk_index"`
			Content    string `json:"content"`
			StartPos   int    `json:"start_pos"`
			EndPos     int    `json:"end_pos"`
			TokenCount int    `json:"token_count"`
		}

		views := make([]chunkView, len(chunks))
		for i, chunk := range chunks {
			views[i] = chunkView{
				ID:         chunk.ID.Hex(),
				ChunkIndex: chunk.ChunkIndex,
				Content:    chunk.Content,
				StartPos:   chunk.StartPos,
				EndPos:     chunk.EndPos,
				TokenCount: chunk.TokenCount,
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": id.Hex(),
			"chunks":      views,
			"count":       len(views),
		})
	}
}

// DeleteDocument cascades: chunks first, then the document, then caches.
func DeleteDocument(documents *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseDocumentID(c)
		if !ok {
			return
		}

		doc, err := documents.GetDocument(c.Request.Context(), id)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		if err := documents.DeleteDocument(c.Request.Context(), id); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":     "Document deleted",
			"document_id": id.Hex(),
		})
	}
}

func parseDocumentID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_id", "Document ID is not valid", nil)
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
