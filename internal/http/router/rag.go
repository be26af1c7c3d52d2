package router

import (
	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/handler"
)

func RAGRouter(rg *gin.RouterGroup, h *handler.RAGHandler) {
	rg.POST("/ask", h.Ask)
	rg.POST("/search", h.Search)
}
