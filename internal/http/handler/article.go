package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/export"
	"tigrinya.news/pipeline/internal/http/dto"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/scraper"
	"tigrinya.news/pipeline/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArticleHandler serves read-only views of the scraped and processed data.
type ArticleHandler struct {
	articles store.ArticleStore
}

func NewArticleHandler(articles store.ArticleStore) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

func (h *ArticleHandler) Newspapers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewspapersResponse{OK: true, Newspapers: scraper.Newspapers()})
}

// List supports ?status=completed|failed|pending to filter by processing status.
func (h *ArticleHandler) List(c *gin.Context) {
	articles, err := h.articles.Articles(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "list articles")
		return
	}

	status := model.ProcessingStatus(c.Query("status"))
	summaries := make([]dto.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		if status != "" && a.ProcessingStatus != status {
			continue
		}
		summaries = append(summaries, dto.ToArticleSummary(a))
	}
	c.JSON(http.StatusOK, dto.ArticlesResponse{OK: true, Total: len(summaries), Articles: summaries})
}

func (h *ArticleHandler) Metadata(c *gin.Context) {
	metadata, err := h.articles.Metadata(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "list metadata")
		return
	}
	if metadata == nil {
		metadata = []model.PDFMetadata{}
	}
	c.JSON(http.StatusOK, dto.MetadataResponse{OK: true, Total: len(metadata), Metadata: metadata})
}

func (h *ArticleHandler) Text(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "index must be a non-negative integer")
		return
	}

	article, err := h.articles.Article(c.Request.Context(), index)
	if err != nil {
		abortWithError(c, err, "article text")
		return
	}
	c.JSON(http.StatusOK, dto.ArticleTextResponse{OK: true, Article: article})
}

func (h *ArticleHandler) Export(c *gin.Context) {
	articles, err := h.articles.Articles(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "export articles")
		return
	}

	data, err := export.ArticlesXLSX(articles)
	if err != nil {
		abortWithError(c, err, "export articles")
		return
	}

	filename := fmt.Sprintf("tigrinya-articles-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
