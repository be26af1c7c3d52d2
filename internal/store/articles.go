package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tigrinya.news/pipeline/internal/model"
)

const (
	metadataFile = "pdf_metadata.json"
	rawDataFile  = "raw_data.json"
	pdfDir       = "pdfs"
)

// FileStore keeps pdf_metadata.json and raw_data.json in the data directory,
// next to the downloaded PDFs. Writes go through a temp file and a rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, pdfDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) PDFDir() string {
	return filepath.Join(s.dir, pdfDir)
}

func (s *FileStore) Metadata(_ context.Context) ([]model.PDFMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readList[model.PDFMetadata](s.path(metadataFile))
}

func (s *FileStore) UpsertMetadata(_ context.Context, entry model.PDFMetadata) (model.PDFMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readList[model.PDFMetadata](s.path(metadataFile))
	if err != nil {
		return model.PDFMetadata{}, err
	}

	found := false
	next := 0
	for i := range entries {
		if entries[i].Index >= next {
			next = entries[i].Index + 1
		}
		if entries[i].ArticleURL == entry.ArticleURL {
			entry.Index = entries[i].Index
			entries[i] = entry
			found = true
		}
	}
	if !found {
		entry.Index = next
		entries = append(entries, entry)
	}

	if err := writeList(s.path(metadataFile), entries); err != nil {
		return model.PDFMetadata{}, err
	}
	return entry, nil
}

func (s *FileStore) Articles(_ context.Context) ([]model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readList[model.Article](s.path(rawDataFile))
}

func (s *FileStore) Article(_ context.Context, index int) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles, err := readList[model.Article](s.path(rawDataFile))
	if err != nil {
		return model.Article{}, err
	}
	for _, a := range articles {
		if a.Index == index {
			return a, nil
		}
	}
	return model.Article{}, ErrNotFound
}

func (s *FileStore) UpsertArticle(_ context.Context, article model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles, err := readList[model.Article](s.path(rawDataFile))
	if err != nil {
		return err
	}

	replaced := false
	for i := range articles {
		if articles[i].PDFFilename == article.PDFFilename {
			articles[i] = article
			replaced = true
			break
		}
	}
	if !replaced {
		articles = append(articles, article)
	}
	sort.SliceStable(articles, func(i, j int) bool { return articles[i].Index < articles[j].Index })

	return writeList(s.path(rawDataFile), articles)
}

func (s *FileStore) Validate(_ context.Context) (model.ValidationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := readList[model.PDFMetadata](s.path(metadataFile))
	if err != nil {
		return model.ValidationSummary{}, err
	}
	articles, err := readList[model.Article](s.path(rawDataFile))
	if err != nil {
		return model.ValidationSummary{}, err
	}

	summary := model.ValidationSummary{
		PDFMetadataCount: len(metadata),
		RawDataCount:     len(articles),
	}
	for _, m := range metadata {
		switch m.DownloadStatus {
		case model.DownloadCompleted:
			summary.CompletedDownloads++
			if _, err := os.Stat(m.PDFFilepath); err != nil {
				summary.MissingFiles++
			}
		case model.DownloadFailed:
			summary.FailedDownloads++
		}
	}
	for _, a := range articles {
		if a.ProcessingStatus == model.ProcessingCompleted {
			summary.ProcessedArticles++
			summary.TotalWords += a.WordCount
		}
	}
	return summary, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func readList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func writeList[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
