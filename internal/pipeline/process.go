package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/internal/extract"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/model"
)

var errNoText = errors.New("no text extracted")

// processTargets picks the downloads to process. Explicit filenames are
// reprocessed even when already completed; All skips completed articles.
func (s *service) processTargets(ctx context.Context, params ProcessParams) ([]model.PDFMetadata, int, error) {
	metadata, err := s.deps.Articles.Metadata(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("reading metadata: %w", err)
	}

	byFilename := make(map[string]model.PDFMetadata, len(metadata))
	for _, m := range metadata {
		if m.DownloadStatus == model.DownloadCompleted && m.PDFFilename != "" {
			byFilename[m.PDFFilename] = m
		}
	}

	if !params.All {
		seen := map[string]bool{}
		var targets []model.PDFMetadata
		for _, name := range params.Filenames {
			name = strings.TrimSpace(name)
			if seen[name] {
				continue
			}
			seen[name] = true
			m, ok := byFilename[name]
			if !ok {
				return nil, 0, invalid("filenames", "no downloaded PDF named %q", name)
			}
			targets = append(targets, m)
		}
		return targets, 0, nil
	}

	articles, err := s.deps.Articles.Articles(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("reading articles: %w", err)
	}
	done := make(map[string]bool, len(articles))
	for _, a := range articles {
		if a.ProcessingStatus == model.ProcessingCompleted {
			done[a.PDFFilename] = true
		}
	}

	var targets []model.PDFMetadata
	skipped := 0
	for _, m := range metadata {
		if m.DownloadStatus != model.DownloadCompleted || m.PDFFilename == "" {
			continue
		}
		if done[m.PDFFilename] {
			skipped++
			continue
		}
		targets = append(targets, m)
	}
	return targets, skipped, nil
}

func (s *service) processTask(targets []model.PDFMetadata, skipped int) jobs.Task {
	return func(ctx context.Context, rep *jobs.Reporter) (any, error) {
		result := model.ProcessResult{Skipped: skipped}
		progress := model.ExtractProgress{Total: len(targets)}

		for i, m := range targets {
			progress.Current = i + 1
			progress.Filename = m.PDFFilename
			if err := rep.Stage(ctx, model.StageExtracting, progress); err != nil {
				return nil, err
			}

			fileCtx := logger.WithLogFields(ctx, logger.LogFields{Filename: logger.Ptr(m.PDFFilename)})
			article := s.processArticle(fileCtx, m)
			if err := rep.Checkpoint(ctx); err != nil {
				return nil, err
			}

			if err := s.deps.Articles.UpsertArticle(ctx, article); err != nil {
				return nil, fmt.Errorf("saving article %s: %w", m.PDFFilename, err)
			}
			m.TextExtractionStatus = string(article.ProcessingStatus)
			if _, err := s.deps.Articles.UpsertMetadata(ctx, m); err != nil {
				return nil, fmt.Errorf("saving metadata: %w", err)
			}

			if article.ProcessingStatus == model.ProcessingCompleted {
				result.Processed++
				result.TotalWords += article.WordCount
			} else {
				result.Failed++
			}
		}

		return result, nil
	}
}

// processArticle extracts and enriches one PDF. Failures are recorded on the
// returned article; entity and image enrichment failures only lose that enrichment.
func (s *service) processArticle(ctx context.Context, m model.PDFMetadata) model.Article {
	article := model.Article{
		Index:            m.Index,
		NewsTitle:        articleTitle(m),
		ArticleURL:       m.ArticleURL,
		PublicationDate:  m.Date,
		PDFFilename:      m.PDFFilename,
		PDFURL:           m.PDFURL,
		ProcessingStatus: model.ProcessingFailed,
	}

	text, err := s.extractText(ctx, m.PDFFilepath)
	if err != nil {
		slog.WarnContext(ctx, "text extraction failed", "error", err)
		article.Error = logger.Ptr(err.Error())
		return article
	}
	article.ExtractedText = text
	article.WordCount = extract.WordCount(text)

	if s.deps.Entities != nil {
		callCtx, cancel := s.callContext(ctx)
		entities, err := s.deps.Entities.Extract(callCtx, text)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "entity extraction failed", "error", err)
		} else {
			article.Entities = &entities
		}
	}

	if s.deps.Images != nil {
		callCtx, cancel := s.callContext(ctx)
		images, err := s.deps.Images.Describe(callCtx, m.PDFFilepath)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "image description failed", "error", err)
		}
		article.Images = images
	}

	article.ProcessingStatus = model.ProcessingCompleted
	slog.InfoContext(ctx, "article processed", "words", article.WordCount, "images", len(article.Images))
	return article
}

func (s *service) extractText(ctx context.Context, path string) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	raw, err := s.deps.Text.Extract(callCtx, path)
	if err != nil {
		return "", err
	}
	text := extract.CleanText(raw)
	if text == "" {
		return "", errNoText
	}
	return text, nil
}

// articleTitle prefers the scraped title and falls back to the part of the
// filename after the date.
func articleTitle(m model.PDFMetadata) string {
	if m.Title != "" {
		return m.Title
	}
	name := strings.TrimSuffix(m.PDFFilename, ".pdf")
	if _, title, ok := strings.Cut(name, "_"); ok {
		return title
	}
	return name
}
