package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/core/config"
	"tigrinya.news/pipeline/core/db"
	"tigrinya.news/pipeline/internal/extract"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/pipeline"
	"tigrinya.news/pipeline/internal/queue"
	"tigrinya.news/pipeline/internal/rag"
	"tigrinya.news/pipeline/internal/scraper"
	"tigrinya.news/pipeline/internal/store"
	"tigrinya.news/pipeline/internal/vectorstore"
)

// App holds the long-lived collaborators shared by the server and the
// command line runner.
type App struct {
	Runner   *jobs.Runner
	Pipeline pipeline.Service
	RAG      rag.Service
	Articles *store.FileStore
	// Status is nil when redis is not configured.
	Status *queue.StatusStream

	database *db.DB
	redis    *redis.Client
	nats     *nats.Conn
}

// New connects to the configured backends and assembles the services.
// Postgres is required; redis, nats and the model providers are optional.
func New(ctx context.Context, cfg config.Config, name string) (*App, error) {
	a := &App{}

	articles, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data dir: %w", err)
	}
	a.Articles = articles

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.database = database
	if err := database.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	slog.InfoContext(ctx, "database connected")

	runs := store.NewPipelineRunStore(database.Pool())
	observers := []jobs.Observer{store.NewRunRecorder(runs)}

	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.Status = queue.NewStatusStream(a.redis, cfg.Redis.StatusStreamPrefix, cfg.Redis.StatusStreamMaxLen)
		observers = append(observers, a.Status)
		slog.InfoContext(ctx, "redis connected", "prefix", cfg.Redis.StatusStreamPrefix)
	} else {
		slog.InfoContext(ctx, "redis disabled, status stream unavailable")
	}

	if cfg.NATS.Enabled() {
		conn, err := queue.ConnectNATS(cfg.NATS.URL, name)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = conn
		observers = append(observers, queue.NewCompletionPublisher(conn, cfg.NATS.CompletionSubject))
		slog.InfoContext(ctx, "nats connected", "subject", cfg.NATS.CompletionSubject)
	}

	a.Runner = jobs.NewRunner(jobs.NewStatusStore(),
		jobs.WithObservers(observers...),
		jobs.WithTimeout(cfg.JobTimeout),
	)

	vectors := vectorstore.New(database.Pool())
	runner := extract.ExecRunner{}
	deps := pipeline.Deps{
		Runner:   a.Runner,
		Articles: articles,
		Runs:     runs,
		Scraper: scraper.NewClient(scraper.Config{
			RequestInterval: cfg.Scrape.RequestInterval,
			CallTimeout:     cfg.CallTimeout,
			UserAgent:       cfg.Scrape.UserAgent,
			HTTPClient:      &http.Client{},
		}),
		Text:    extract.NewTextExtractor(runner, cfg.Extract.PDFToTextBin),
		Vectors: vectors,
	}

	var embedder llm.Embedder
	if cfg.OpenAI.Enabled() {
		embedder, err = llm.NewEmbedder(llm.EmbedderConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbedModel,
			Dimensions: cfg.OpenAI.EmbedDimensions,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		deps.Embedder = embedder

		extractor, err := llm.New(llm.ClientConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.ExtractModel,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating extraction client: %w", err)
		}
		deps.Entities = extract.NewEntityExtractor(extractor)

		vision, err := llm.New(llm.ClientConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.VisionModel,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating vision client: %w", err)
		}
		deps.Images = extract.NewImageDescriber(runner, cfg.Extract.PDFImagesBin, vision, cfg.Extract.MaxImages)
	} else {
		slog.InfoContext(ctx, "openai disabled, entities, image descriptions and embeddings are skipped")
	}

	retry := llm.RetryPolicy{Attempts: cfg.RAG.Retries, InitialBackoff: cfg.RAG.InitialBackoff}
	a.Pipeline = pipeline.NewService(deps, pipeline.Config{
		Collection:  cfg.Ingest.Collection,
		BatchSize:   cfg.Ingest.BatchSize,
		BatchDelay:  cfg.Ingest.BatchDelay,
		CallTimeout: cfg.CallTimeout,
		Retry:       retry,
	})

	var chat llm.ChatClient
	if cfg.ChatLLM.Enabled() {
		chat, err = llm.NewChatClient(llm.Config{
			Provider:  cfg.ChatLLM.Provider,
			APIKey:    cfg.ChatLLM.APIKey,
			BaseURL:   cfg.ChatLLM.BaseURL,
			Model:     cfg.ChatLLM.Model,
			MaxTokens: cfg.ChatLLM.MaxTokens,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating chat client: %w", err)
		}
		slog.InfoContext(ctx, "chat model configured", "provider", cfg.ChatLLM.Provider, "model", chat.Model())
	} else {
		slog.InfoContext(ctx, "chat model disabled, /rag/ask will answer 503")
	}

	a.RAG = rag.NewService(chat, embedder, vectors, rag.Config{
		Collection:  cfg.Ingest.Collection,
		MaxK:        cfg.RAG.MaxK,
		MaxTokens:   cfg.ChatLLM.MaxTokens,
		CallTimeout: cfg.CallTimeout,
		Retry:       retry,
	})

	return a, nil
}

// Shutdown cancels running jobs and waits for them to settle.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Runner == nil {
		return nil
	}
	return a.Runner.Shutdown(ctx)
}

// Close releases backend connections. Call it after Shutdown.
func (a *App) Close() {
	var errs []error
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("draining nats: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if a.database != nil {
		a.database.Close()
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("closing backends", "error", err)
	}
}
