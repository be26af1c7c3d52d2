package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/dto"
	"tigrinya.news/pipeline/internal/rag"
)

type RAGHandler struct {
	svc rag.Service
}

func NewRAGHandler(svc rag.Service) *RAGHandler {
	return &RAGHandler{svc: svc}
}

func (h *RAGHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: expected {\"question\": \"...\", \"k\": 5, \"history\": []}")
		return
	}

	answer, err := h.svc.Ask(c.Request.Context(), rag.AskParams{
		Question: req.Question,
		K:        req.K,
		History:  req.History,
	})
	if err != nil {
		abortWithError(c, err, "ask")
		return
	}

	c.JSON(http.StatusOK, dto.AskResponse{
		OK:       true,
		Question: answer.Question,
		Answer:   answer.Answer,
		Sources:  answer.Sources,
	})
}

func (h *RAGHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: expected {\"query\": \"...\", \"k\": 5}")
		return
	}

	hits, err := h.svc.Search(c.Request.Context(), req.Query, req.K)
	if err != nil {
		abortWithError(c, err, "search")
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{OK: true, Results: hits})
}
