package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notemate/internal/pkg/response"
)

type RouterDeps struct {
	Documents  *DocumentHandler
	Notes      *NoteHandler
	Chats      *ChatHandler
	Dictionary *DictionaryHandler
	Files      *FileHandler
	// AILimit guards the endpoints that call the language model. Nil disables it.
	AILimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limit := deps.AILimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	api.POST("/documents", deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.PUT("/documents/:id", deps.Documents.Rename)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.GET("/documents/:id/file", deps.Documents.File)
	api.GET("/documents/:id/pages", deps.Documents.Pages)
	api.POST("/documents/:id/extract", deps.Documents.Reextract)
	api.POST("/documents/:id/terms", limit, deps.Documents.ExtractTerms)

	api.GET("/documents/:id/dictionary", deps.Dictionary.ListByDocument)
	api.POST("/documents/:id/dictionary", deps.Dictionary.Promote)
	api.GET("/dictionary", deps.Dictionary.List)
	api.POST("/dictionary", deps.Dictionary.CreateDetached)
	api.PUT("/dictionary/:id/detach", deps.Dictionary.Detach)
	api.DELETE("/dictionary/:id", deps.Dictionary.Delete)

	api.GET("/documents/:id/notes", deps.Notes.List)
	api.POST("/documents/:id/notes", deps.Notes.Create)
	api.GET("/notes/:id", deps.Notes.Get)
	api.PUT("/notes/:id", deps.Notes.Update)
	api.DELETE("/notes/:id", deps.Notes.Delete)
	api.POST("/notes/:id/images", deps.Notes.UploadImage)

	api.GET("/documents/:id/chat/:category", deps.Chats.List)
	api.POST("/documents/:id/chat/free", limit, deps.Chats.SendFree)
	api.POST("/documents/:id/chat/term", limit, deps.Chats.ExplainTerms)
	api.DELETE("/documents/:id/chat/:category", deps.Chats.Clear)
	api.DELETE("/documents/:id/chat/:category/:message_id", deps.Chats.DeleteMessage)

	api.GET("/files/:token", deps.Files.Signed)
	api.GET("/images/:id", deps.Files.Image)
}
