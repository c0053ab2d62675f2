package handlers

import (
	"context"
	"strconv"

	"sitepulse/api/chat"
	"sitepulse/api/models"
	"sitepulse/api/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandlers struct {
	Chat *chat.Service
	log  *zap.Logger
}

func NewChatHandlers(svc *chat.Service, log *zap.Logger) *ChatHandlers {
	return &ChatHandlers{Chat: svc, log: log.With(zap.String("component", "chat_handlers"))}
}

// Send forwards a question about the tracked domains to the LLM.
func (h *ChatHandlers) Send(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	answer, err := h.Chat.Ask(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.OK(c, "Response generated successfully", answer)
}

func (h *ChatHandlers) History(c *gin.Context) {
	limit := chat.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	msgs, err := h.Chat.History(ctx, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.OK(c, "Chat history retrieved successfully", gin.H{"messages": msgs})
}
