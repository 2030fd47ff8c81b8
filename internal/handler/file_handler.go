package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notemate/internal/service"
)

type FileHandler struct {
	files *service.FileService
	notes *service.NoteService
}

func NewFileHandler(files *service.FileService, notes *service.NoteService) *FileHandler {
	return &FileHandler{files: files, notes: notes}
}

// Signed serves a stored file to holders of a valid file token.
func (h *FileHandler) Signed(c *gin.Context) {
	claims, rc, err := h.files.OpenSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	contentType := claims.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "inline"
	if c.Query("download") == "1" {
		disposition = "attachment"
	}
	streamFile(c, rc, -1, contentType, disposition, claims.DownloadAs)
}

func (h *FileHandler) Image(c *gin.Context) {
	image, rc, err := h.notes.OpenImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "private, max-age=86400")
	streamFile(c, rc, image.Size, image.ContentType, "inline", image.Name)
}
