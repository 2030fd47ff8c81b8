package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notemate/internal/model"
	"github.com/xxxsen/notemate/internal/pkg/errcode"
	"github.com/xxxsen/notemate/internal/pkg/response"
	"github.com/xxxsen/notemate/internal/service"
)

type DictionaryHandler struct {
	dict *service.DictionaryService
}

func NewDictionaryHandler(dict *service.DictionaryService) *DictionaryHandler {
	return &DictionaryHandler{dict: dict}
}

type entriesRequest struct {
	Entries []service.EntryInput `json:"entries"`
}

func (h *DictionaryHandler) List(c *gin.Context) {
	items, err := h.dict.List(c.Request.Context(), service.ListQuery{
		DocumentID: c.Query("document_id"),
		Scope:      c.Query("scope"),
		Query:      c.Query("q"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *DictionaryHandler) ListByDocument(c *gin.Context) {
	items, err := h.dict.List(c.Request.Context(), service.ListQuery{
		DocumentID: c.Param("id"),
		Query:      c.Query("q"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *DictionaryHandler) Promote(c *gin.Context) {
	h.upsert(c, c.Param("id"))
}

func (h *DictionaryHandler) CreateDetached(c *gin.Context) {
	h.upsert(c, "")
}

func (h *DictionaryHandler) upsert(c *gin.Context, docID string) {
	var req entriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	items, err := h.dict.Promote(c.Request.Context(), docID, model.DictionarySourceManual, "", req.Entries)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *DictionaryHandler) Detach(c *gin.Context) {
	entry, err := h.dict.Detach(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *DictionaryHandler) Delete(c *gin.Context) {
	if err := h.dict.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
