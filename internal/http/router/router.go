package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/handler"
	"tigrinya.news/pipeline/internal/pipeline"
	"tigrinya.news/pipeline/internal/rag"
	"tigrinya.news/pipeline/internal/store"
)

type Services struct {
	Pipeline pipeline.Service
	RAG      rag.Service
	Articles store.ArticleStore
	// Status is nil when redis is not configured; the stream endpoint then answers 503.
	Status handler.StatusReader
}

func SetupRoutes(router *gin.Engine, services Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pipelineHandler := handler.NewPipelineHandler(services.Pipeline)
	PipelineRouter(router, pipelineHandler)

	streamHandler := handler.NewStatusStreamHandler(services.Status, 0)
	router.GET("/pipeline/stream/:kind", streamHandler.Stream)

	articleHandler := handler.NewArticleHandler(services.Articles)
	ArticleRouter(router, articleHandler)

	ragHandler := handler.NewRAGHandler(services.RAG)
	RAGRouter(router.Group("/rag"), ragHandler)
}
