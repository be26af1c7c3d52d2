package router

import (
	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/handler"
)

func ArticleRouter(r gin.IRouter, h *handler.ArticleHandler) {
	r.GET("/newspapers", h.Newspapers)

	a := r.Group("/articles")
	{
		a.GET("", h.List)
		a.GET("/metadata", h.Metadata)
		a.GET("/export", h.Export)
		a.GET("/:index/text", h.Text)
	}
}
