package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/http/dto"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/pipeline"
	"tigrinya.news/pipeline/internal/vectorstore"
)

type PipelineHandler struct {
	svc pipeline.Service
}

func NewPipelineHandler(svc pipeline.Service) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

func (h *PipelineHandler) Scrape(c *gin.Context) {
	var req dto.ScrapeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	accepted, err := h.svc.RequestScrape(c.Request.Context(), pipeline.ScrapeParams{
		NewspaperID: req.NewspaperID,
		MaxArticles: req.MaxArticles,
		MaxPages:    req.MaxPages,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		abortWithError(c, err, "scrape")
		return
	}

	c.JSON(http.StatusAccepted, dto.ScrapeResponse{
		OK:          true,
		Message:     fmt.Sprintf("Scraping up to %d articles from %s", accepted.MaxArticles, accepted.NewspaperID),
		RunID:       accepted.Record.RunID,
		NewspaperID: accepted.NewspaperID,
		MaxArticles: accepted.MaxArticles,
		MaxPages:    accepted.MaxPages,
	})
}

func (h *PipelineHandler) Process(c *gin.Context) {
	var req dto.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: expected {\"filenames\": [...]}")
		return
	}
	h.process(c, pipeline.ProcessParams{Filenames: req.Filenames})
}

func (h *PipelineHandler) ProcessAll(c *gin.Context) {
	h.process(c, pipeline.ProcessParams{All: true})
}

func (h *PipelineHandler) process(c *gin.Context, params pipeline.ProcessParams) {
	accepted, err := h.svc.RequestProcess(c.Request.Context(), params)
	if err != nil {
		abortWithError(c, err, "process")
		return
	}

	c.JSON(http.StatusAccepted, dto.ProcessResponse{
		OK:      true,
		Message: fmt.Sprintf("Processing %d PDFs", accepted.Count),
		RunID:   accepted.Record.RunID,
		Count:   accepted.Count,
	})
}

// Ingest waits for the run to finish unless the request asks for async.
func (h *PipelineHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	rec, err := h.svc.RequestIngest(ctx, pipeline.IngestParams{Limit: req.Limit, Collection: req.TargetCollection()})
	if err != nil {
		abortWithError(c, err, "ingest")
		return
	}

	if req.Async {
		c.JSON(http.StatusAccepted, dto.IngestResponse{OK: true, Message: "Ingest started", RunID: rec.RunID})
		return
	}

	final, err := h.svc.Wait(ctx, model.JobKindIngest)
	if err != nil {
		// The client went away; the run carries on in the background.
		slog.WarnContext(ctx, "stopped waiting for ingest", "run_id", rec.RunID, "error", err)
		c.AbortWithStatusJSON(http.StatusAccepted, dto.IngestResponse{OK: true, Message: "Ingest still running", RunID: rec.RunID})
		return
	}

	resp := dto.ToIngestResponse(final)
	if final.Failed() {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status serves GET /<kind>/status.
func (h *PipelineHandler) Status(kind model.JobKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.StatusResponse{OK: true, JobRecord: h.svc.Status(kind)})
	}
}

func (h *PipelineHandler) VectorStatus(c *gin.Context) {
	collections, err := h.svc.VectorStatus(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "vector status")
		return
	}
	if collections == nil {
		collections = []vectorstore.Collection{}
	}
	c.JSON(http.StatusOK, dto.CollectionsResponse{OK: true, Collections: collections})
}

func (h *PipelineHandler) Validate(c *gin.Context) {
	summary, err := h.svc.Validate(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "validate")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *PipelineHandler) Runs(c *gin.Context) {
	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 || n > 200 {
			badRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(c.Request.Context(), model.JobKind(c.Query("kind")), int32(limit))
	if err != nil {
		abortWithError(c, err, "runs")
		return
	}
	c.JSON(http.StatusOK, dto.RunsResponse{OK: true, Runs: runs})
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
