package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/dto"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/pipeline"
	"tigrinya.news/pipeline/internal/rag"
	"tigrinya.news/pipeline/internal/store"
)

// abortWithError maps service errors to a status code and an {ok:false} body.
// Anything unrecognized is logged and reported as a 500 without details.
func abortWithError(c *gin.Context, err error, action string) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Field: verr.Field})
	case errors.Is(err, pipeline.ErrValidation),
		errors.Is(err, rag.ErrEmptyQuestion),
		errors.Is(err, rag.ErrInvalidK),
		errors.Is(err, rag.ErrInvalidHistory):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, jobs.ErrAlreadyRunning):
		c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Message: "A " + action + " run is already in progress; poll its status instead of retrying.",
		})
	case errors.Is(err, rag.ErrEmptyIndex):
		c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, rag.ErrUpstreamUnavailable),
		errors.Is(err, rag.ErrNotConfigured),
		errors.Is(err, pipeline.ErrEmbeddingsUnavailable):
		slog.WarnContext(c.Request.Context(), action+" unavailable", "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), action+" failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: action + " failed"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}
