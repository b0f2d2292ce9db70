package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"ticketing-chatbot-platform/internal/logger"
	"ticketing-chatbot-platform/middleware"
	"ticketing-chatbot-platform/models"
	"ticketing-chatbot-platform/services"
	"ticketing-chatbot-platform/utils"
)

// HandleAsk answers a single question through the full retrieval pipeline.
// Repeating the same question is idempotent: the cached answer is returned.
func HandleAsk(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Question is required", nil)
			return
		}

		resp, err := chat.ProcessQuestion(c.Request.Context(), req.Question, req.ConversationID)
		if err != nil {
			switch {
			case utils.IsValidationError(err):
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_question", err.Error(), nil)
			case errors.Is(err, gobreaker.ErrOpenState):
				utils.RespondWithError(c, http.StatusServiceUnavailable, "generation_unavailable",
					"Answer generation is temporarily unavailable. Please try again shortly.", nil)
			default:
				logger.Error("Question pipeline failed",
					"request_id", middleware.GetRequestID(c), "error", err)
				utils.RespondWithInternalError(c, "Failed to answer question", nil)
			}
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
