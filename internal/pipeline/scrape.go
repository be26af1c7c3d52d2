package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/scraper"
)

// A source that fails this many articles in a row is treated as down.
const maxConsecutiveFailures = 3

func (s *service) scrapeTask(np model.Newspaper, params scraper.CollectParams) jobs.Task {
	return func(ctx context.Context, rep *jobs.Reporter) (any, error) {
		urls, err := s.deps.Scraper.Collect(ctx, np, params, func(p model.CollectProgress) error {
			return rep.Stage(ctx, model.StageCollecting, p)
		})
		if err != nil {
			return nil, fmt.Errorf("collecting articles: %w", err)
		}
		slog.InfoContext(ctx, "article urls collected", "count", len(urls))

		downloaded, err := s.downloadedArticles(ctx)
		if err != nil {
			return nil, err
		}

		progress := model.DownloadProgress{Total: len(urls)}
		consecutive := 0
		for i, articleURL := range urls {
			progress.Current = i + 1
			progress.URL = articleURL
			if err := rep.Stage(ctx, model.StageDownloading, progress); err != nil {
				return nil, err
			}

			if downloaded[articleURL] {
				consecutive = 0
				progress.Successful++
				rep.Progress(ctx, progress)
				slog.DebugContext(ctx, "article already downloaded", "url", articleURL)
				continue
			}

			entry, err := s.downloadArticle(ctx, np, articleURL, i+1)
			if _, serr := s.deps.Articles.UpsertMetadata(ctx, entry); serr != nil {
				return nil, fmt.Errorf("saving metadata: %w", serr)
			}

			if err == nil {
				consecutive = 0
				progress.Successful++
				rep.Progress(ctx, progress)
				continue
			}

			consecutive++
			progress.Failed++
			rep.Progress(ctx, progress)
			slog.WarnContext(ctx, "article download failed", "url", articleURL, "error", err)

			if cerr := rep.Checkpoint(ctx); cerr != nil {
				return nil, cerr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("downloading article %d of %d: %w", i+1, len(urls), err)
			}
			if consecutive >= maxConsecutiveFailures {
				return nil, fmt.Errorf("downloading article %d of %d: %d consecutive failures: %w", i+1, len(urls), consecutive, err)
			}
		}

		return model.ScrapeResult{
			NewspaperID: np.ID,
			Successful:  progress.Successful,
			Total:       len(urls),
		}, nil
	}
}

// downloadedArticles returns the article URLs whose PDF is already on disk.
func (s *service) downloadedArticles(ctx context.Context) (map[string]bool, error) {
	metadata, err := s.deps.Articles.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	out := make(map[string]bool, len(metadata))
	for _, m := range metadata {
		if m.DownloadStatus != model.DownloadCompleted || m.PDFFilepath == "" {
			continue
		}
		if _, err := os.Stat(m.PDFFilepath); err == nil {
			out[m.ArticleURL] = true
		}
	}
	return out, nil
}

// downloadArticle resolves and downloads one article's PDF. The returned
// metadata records the outcome either way.
func (s *service) downloadArticle(ctx context.Context, np model.Newspaper, articleURL string, n int) (model.PDFMetadata, error) {
	entry := model.PDFMetadata{
		NewspaperID:          np.ID,
		ArticleURL:           articleURL,
		DownloadStatus:       model.DownloadFailed,
		TextExtractionStatus: string(model.ProcessingPending),
	}
	fail := func(err error) (model.PDFMetadata, error) {
		entry.Error = logger.Ptr(err.Error())
		return entry, err
	}

	page, err := s.deps.Scraper.Resolve(ctx, articleURL)
	entry.Title = page.Title
	entry.Date = page.Date
	if entry.Title == "" {
		entry.Title = fmt.Sprintf("Article %d", n)
	}
	if err != nil {
		return fail(err)
	}

	filename := scraper.SafeFilename(entry.Date, entry.Title)
	dest := filepath.Join(s.deps.Articles.PDFDir(), filename)
	entry.PDFURL = page.PDFURL

	ctx = logger.WithLogFields(ctx, logger.LogFields{Filename: logger.Ptr(filename)})
	size, err := s.deps.Scraper.Download(ctx, page.PDFURL, dest)
	if err != nil {
		return fail(err)
	}

	entry.PDFFilename = filename
	entry.PDFFilepath = dest
	entry.DownloadStatus = model.DownloadCompleted
	slog.InfoContext(ctx, "pdf downloaded", "bytes", size)
	return entry, nil
}
