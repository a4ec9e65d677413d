package handler

import (
	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler serves the per-escrow conversation.
type MessageHandler struct {
	conversationSvc ports.ConversationService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(conversationSvc ports.ConversationService) *MessageHandler {
	return &MessageHandler{conversationSvc: conversationSvc}
}

// List handles GET /api/v1/escrows/:id/messages, oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	msgs, err := h.conversationSvc.ListMessages(c.Request.Context(), id, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewMessageListResponse(msgs))
}

// Post handles POST /api/v1/escrows/:id/messages.
func (h *MessageHandler) Post(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	msg, err := h.conversationSvc.PostMessage(c.Request.Context(), id, caller, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewMessageResponse(msg))
}
