package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tigrinya.news/pipeline/common/id"
	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/common/otel"
	"tigrinya.news/pipeline/core/config"
	"tigrinya.news/pipeline/internal/app"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/pipeline"
)

type options struct {
	stage       string
	newspaper   string
	maxArticles int
	maxPages    int
	startDate   string
	endDate     string
	files       string
	limit       int
	collection  string
}

func main() {
	var opts options
	flag.StringVar(&opts.stage, "stage", "all", "stage to run: scrape, process, ingest or all")
	flag.StringVar(&opts.newspaper, "newspaper", pipeline.DefaultNewspaper, "newspaper id to scrape")
	flag.IntVar(&opts.maxArticles, "max-articles", pipeline.DefaultMaxArticles, "maximum articles to download")
	flag.IntVar(&opts.maxPages, "max-pages", pipeline.DefaultMaxPages, "maximum listing pages to visit")
	flag.StringVar(&opts.startDate, "start-date", "", "earliest publication date, YYYY-MM-DD")
	flag.StringVar(&opts.endDate, "end-date", "", "latest publication date, YYYY-MM-DD")
	flag.StringVar(&opts.files, "files", "", "comma separated PDF filenames to process; empty processes every pending download")
	flag.IntVar(&opts.limit, "limit", 0, "maximum articles to ingest; zero ingests all")
	flag.StringVar(&opts.collection, "collection", "", "vector collection to ingest into")
	flag.Parse()

	stages, err := stagesFor(opts.stage)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.Load(config.ServiceTypePipeline)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, "tigrinya-pipeline-cli")
	if err != nil {
		slog.ErrorContext(ctx, "failed to start", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	code := run(runCtx, application.Pipeline, stages, opts)
	stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "job runner shutdown error", "error", err)
	}
	application.Close()
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
	os.Exit(code)
}

func stagesFor(stage string) ([]model.JobKind, error) {
	switch stage {
	case "all":
		return []model.JobKind{model.JobKindScrape, model.JobKindProcess, model.JobKindIngest}, nil
	case string(model.JobKindScrape), string(model.JobKindProcess), string(model.JobKindIngest):
		return []model.JobKind{model.JobKind(stage)}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

// run starts each stage in order and waits for it, stopping at the first failure.
func run(ctx context.Context, svc pipeline.Service, stages []model.JobKind, opts options) int {
	for _, kind := range stages {
		if err := start(ctx, svc, kind, opts); err != nil {
			slog.ErrorContext(ctx, "stage rejected", "stage", kind, "error", err)
			return 1
		}

		rec, err := svc.Wait(ctx, kind)
		if err != nil {
			// Interrupted; the runner cancels the job on shutdown.
			slog.ErrorContext(ctx, "stage interrupted", "stage", kind, "error", err)
			return 130
		}

		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))

		if rec.Failed() {
			return 1
		}
	}
	return 0
}

func start(ctx context.Context, svc pipeline.Service, kind model.JobKind, opts options) error {
	switch kind {
	case model.JobKindScrape:
		_, err := svc.RequestScrape(ctx, pipeline.ScrapeParams{
			NewspaperID: opts.newspaper,
			MaxArticles: opts.maxArticles,
			MaxPages:    opts.maxPages,
			StartDate:   opts.startDate,
			EndDate:     opts.endDate,
		})
		return err
	case model.JobKindProcess:
		params := pipeline.ProcessParams{All: true}
		if opts.files != "" {
			params = pipeline.ProcessParams{Filenames: splitList(opts.files)}
		}
		_, err := svc.RequestProcess(ctx, params)
		return err
	case model.JobKindIngest:
		_, err := svc.RequestIngest(ctx, pipeline.IngestParams{
			Limit:      opts.limit,
			Collection: opts.collection,
		})
		return err
	default:
		return fmt.Errorf("unknown stage %q", kind)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
