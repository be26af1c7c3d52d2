package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/scraper"
	"tigrinya.news/pipeline/internal/store"
	"tigrinya.news/pipeline/internal/vectorstore"
)

const (
	MinLimit = 1
	MaxLimit = 500

	DefaultMaxArticles = 100
	DefaultMaxPages    = 100
	DefaultNewspaper   = "haddas-ertra"

	dateLayout = "2006-01-02"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

type ScrapeParams struct {
	NewspaperID string
	// Zero selects the default; anything else is clamped to [1, 500].
	MaxArticles int
	MaxPages    int
	StartDate   string
	EndDate     string
}

// ScrapeAccepted echoes the effective, clamped parameters of an accepted scrape.
type ScrapeAccepted struct {
	Record      model.JobRecord
	NewspaperID string
	MaxArticles int
	MaxPages    int
}

type ProcessParams struct {
	Filenames []string
	All       bool
}

type ProcessAccepted struct {
	Record model.JobRecord
	Count  int
}

type IngestParams struct {
	// Zero ingests every processed article.
	Limit      int
	Collection string
}

type Service interface {
	RequestScrape(ctx context.Context, params ScrapeParams) (ScrapeAccepted, error)
	RequestProcess(ctx context.Context, params ProcessParams) (ProcessAccepted, error)
	RequestIngest(ctx context.Context, params IngestParams) (model.JobRecord, error)
	// Status returns the latest record of kind; a kind that never ran reports an idle record.
	Status(kind model.JobKind) model.JobRecord
	Wait(ctx context.Context, kind model.JobKind) (model.JobRecord, error)
	Validate(ctx context.Context) (model.ValidationSummary, error)
	VectorStatus(ctx context.Context) ([]vectorstore.Collection, error)
	Runs(ctx context.Context, kind model.JobKind, limit int32) ([]model.PipelineRun, error)
}

type Config struct {
	Collection  string
	BatchSize   int
	BatchDelay  time.Duration
	CallTimeout time.Duration
	Retry       llm.RetryPolicy
}

// Deps are the collaborators of the pipeline. Entities, Images, Embedder,
// Vectors and Runs are optional.
type Deps struct {
	Runner   *jobs.Runner
	Articles store.ArticleStore
	Runs     store.PipelineRunStore
	Scraper  Scraper
	Text     TextExtractor
	Entities EntityExtractor
	Images   ImageDescriber
	Embedder llm.Embedder
	Vectors  VectorStore
}

type service struct {
	deps Deps
	cfg  Config
}

func NewService(deps Deps, cfg Config) Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	return &service{deps: deps, cfg: cfg}
}

func (s *service) RequestScrape(ctx context.Context, params ScrapeParams) (ScrapeAccepted, error) {
	if params.NewspaperID == "" {
		params.NewspaperID = DefaultNewspaper
	}
	np, ok := scraper.LookupNewspaper(params.NewspaperID)
	if !ok {
		return ScrapeAccepted{}, invalid("newspaper_id", "unknown newspaper %q", params.NewspaperID)
	}

	collect := scraper.CollectParams{
		MaxArticles: clamp(params.MaxArticles, DefaultMaxArticles),
		MaxPages:    clamp(params.MaxPages, DefaultMaxPages),
	}

	var err error
	if collect.StartDate, err = parseDate("start_date", params.StartDate); err != nil {
		return ScrapeAccepted{}, err
	}
	if collect.EndDate, err = parseDate("end_date", params.EndDate); err != nil {
		return ScrapeAccepted{}, err
	}
	if collect.StartDate != nil && collect.EndDate != nil && collect.EndDate.Before(*collect.StartDate) {
		return ScrapeAccepted{}, invalid("end_date", "must not be before start_date")
	}

	rec, err := s.deps.Runner.Start(ctx, model.JobKindScrape, s.scrapeTask(np, collect))
	if err != nil {
		return ScrapeAccepted{Record: rec}, err
	}

	slog.InfoContext(ctx, "scrape accepted",
		"run_id", rec.RunID,
		"newspaper_id", np.ID,
		"max_articles", collect.MaxArticles,
		"max_pages", collect.MaxPages)

	return ScrapeAccepted{
		Record:      rec,
		NewspaperID: np.ID,
		MaxArticles: collect.MaxArticles,
		MaxPages:    collect.MaxPages,
	}, nil
}

func (s *service) RequestProcess(ctx context.Context, params ProcessParams) (ProcessAccepted, error) {
	if !params.All && len(params.Filenames) == 0 {
		return ProcessAccepted{}, invalid("filenames", "at least one filename is required")
	}

	targets, skipped, err := s.processTargets(ctx, params)
	if err != nil {
		return ProcessAccepted{}, err
	}

	rec, err := s.deps.Runner.Start(ctx, model.JobKindProcess, s.processTask(targets, skipped))
	if err != nil {
		return ProcessAccepted{Record: rec}, err
	}

	slog.InfoContext(ctx, "process accepted", "run_id", rec.RunID, "files", len(targets), "skipped", skipped, "all", params.All)
	return ProcessAccepted{Record: rec, Count: len(targets)}, nil
}

func (s *service) RequestIngest(ctx context.Context, params IngestParams) (model.JobRecord, error) {
	if params.Limit < 0 {
		return model.JobRecord{}, invalid("limit", "must not be negative")
	}
	if params.Collection == "" {
		params.Collection = s.cfg.Collection
	}
	if !collectionName.MatchString(params.Collection) {
		return model.JobRecord{}, invalid("collection", "must be 1-63 letters, digits, '-' or '_'")
	}
	if s.deps.Embedder == nil || s.deps.Vectors == nil {
		return model.JobRecord{}, ErrEmbeddingsUnavailable
	}

	rec, err := s.deps.Runner.Start(ctx, model.JobKindIngest, s.ingestTask(params))
	if err != nil {
		return rec, err
	}

	slog.InfoContext(ctx, "ingest accepted", "run_id", rec.RunID, "collection", params.Collection, "limit", params.Limit)
	return rec, nil
}

func (s *service) Status(kind model.JobKind) model.JobRecord {
	rec, ok := s.deps.Runner.Status(kind)
	if !ok {
		return model.JobRecord{Kind: kind}
	}
	return rec
}

func (s *service) Wait(ctx context.Context, kind model.JobKind) (model.JobRecord, error) {
	rec, err := s.deps.Runner.Wait(ctx, kind)
	if errors.Is(err, jobs.ErrNotStarted) {
		return model.JobRecord{Kind: kind}, nil
	}
	return rec, err
}

func (s *service) Validate(ctx context.Context) (model.ValidationSummary, error) {
	summary, err := s.deps.Articles.Validate(ctx)
	if err != nil {
		return model.ValidationSummary{}, fmt.Errorf("validating data: %w", err)
	}
	return summary, nil
}

func (s *service) VectorStatus(ctx context.Context) ([]vectorstore.Collection, error) {
	if s.deps.Vectors == nil {
		return nil, ErrEmbeddingsUnavailable
	}
	collections, err := s.deps.Vectors.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

func (s *service) Runs(ctx context.Context, kind model.JobKind, limit int32) ([]model.PipelineRun, error) {
	if kind != "" && !kind.Valid() {
		return nil, invalid("kind", "unknown job kind %q", kind)
	}
	if s.deps.Runs == nil {
		return []model.PipelineRun{}, nil
	}
	runs, err := s.deps.Runs.List(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// callContext bounds a single external call.
func (s *service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

func clamp(v, fallback int) int {
	switch {
	case v == 0:
		return fallback
	case v < MinLimit:
		return MinLimit
	case v > MaxLimit:
		return MaxLimit
	default:
		return v
	}
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, invalid(field, "must be a date in YYYY-MM-DD form")
	}
	return &t, nil
}
