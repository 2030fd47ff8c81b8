package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notemate/internal/model"
	"github.com/xxxsen/notemate/internal/pkg/errcode"
	"github.com/xxxsen/notemate/internal/pkg/response"
	"github.com/xxxsen/notemate/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type freeChatRequest struct {
	Message string `json:"message"`
}

type termChatRequest struct {
	Terms   []string `json:"terms"`
	Promote bool     `json:"promote"`
}

func (h *ChatHandler) List(c *gin.Context) {
	items, err := h.chats.List(c.Request.Context(), c.Param("id"), c.Param("category"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *ChatHandler) SendFree(c *gin.Context) {
	var req freeChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	msgs, err := h.chats.SendFree(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"category": model.ChatCategoryFree, "messages": msgs})
}

func (h *ChatHandler) ExplainTerms(c *gin.Context) {
	var req termChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.chats.ExplainTerms(c.Request.Context(), c.Param("id"), req.Terms, req.Promote)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	err := h.chats.DeleteMessage(c.Request.Context(), c.Param("id"), c.Param("category"), c.Param("message_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ChatHandler) Clear(c *gin.Context) {
	deleted, err := h.chats.Clear(c.Request.Context(), c.Param("id"), c.Param("category"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}
