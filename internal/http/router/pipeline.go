package router

import (
	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/handler"
	"tigrinya.news/pipeline/internal/model"
)

// PipelineRouter keeps the flat paths the dashboard already calls.
func PipelineRouter(r gin.IRouter, h *handler.PipelineHandler) {
	r.POST("/scrape", h.Scrape)
	r.GET("/scrape/status", h.Status(model.JobKindScrape))

	r.POST("/process", h.Process)
	r.POST("/process/all", h.ProcessAll)
	r.GET("/process/status", h.Status(model.JobKindProcess))

	r.POST("/ingest", h.Ingest)
	r.GET("/ingest/status", h.Status(model.JobKindIngest))

	p := r.Group("/pipeline")
	{
		p.GET("/qdrant-status", h.VectorStatus)
		p.GET("/validate", h.Validate)
		p.GET("/runs", h.Runs)
	}
}
