package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notemate/internal/pkg/errcode"
	"github.com/xxxsen/notemate/internal/pkg/response"
	"github.com/xxxsen/notemate/internal/service"
)

type DocumentHandler struct {
	documents     *service.DocumentService
	terms         *service.TermService
	maxUploadSize int64
}

func NewDocumentHandler(documents *service.DocumentService, terms *service.TermService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, terms: terms, maxUploadSize: maxUploadSize}
}

type renameRequest struct {
	Filename string `json:"filename"`
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds the "+formatUploadLimit(h.maxUploadSize)+" limit")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	result, err := h.documents.Upload(c.Request.Context(), file.Filename, opened)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.documents.Rename(c.Request.Context(), c.Param("id"), req.Filename)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// File streams the PDF inline, or as an attachment with the original name
// when download=1.
func (h *DocumentHandler) File(c *gin.Context) {
	doc, rc, err := h.documents.OpenFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	disposition := "inline"
	if c.Query("download") == "1" {
		disposition = "attachment"
	}
	streamFile(c, rc, doc.Size, "application/pdf", disposition, doc.Filename)
}

func (h *DocumentHandler) Pages(c *gin.Context) {
	r, err := service.ParsePageRange(c.Query("page"), c.Query("from"), c.Query("to"))
	if err != nil {
		handleError(c, err)
		return
	}
	pages, err := h.documents.Pages(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, pages)
}

func (h *DocumentHandler) Reextract(c *gin.Context) {
	result, err := h.documents.Reextract(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) ExtractTerms(c *gin.Context) {
	r, err := service.ParsePageRange(c.Query("page"), c.Query("from"), c.Query("to"))
	if err != nil {
		handleError(c, err)
		return
	}
	entries, resolved, err := h.terms.Extract(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"pages": resolved.Label(), "items": entries})
}

func streamFile(c *gin.Context, r io.Reader, size int64, contentType, disposition, filename string) {
	headers := map[string]string{}
	if filename != "" {
		headers["Content-Disposition"] = mime.FormatMediaType(disposition, map[string]string{"filename": filename})
	}
	if size <= 0 {
		size = -1
	}
	headers["X-Content-Type-Options"] = "nosniff"
	c.DataFromReader(http.StatusOK, size, contentType, r, headers)
}
