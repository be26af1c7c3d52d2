package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/vectorstore"
)

const (
	DefaultK        = 5
	DefaultMaxK     = 20
	maxHistoryTurns = 10
)

var (
	ErrEmptyQuestion       = errors.New("question must not be empty")
	ErrInvalidK            = errors.New("k is out of range")
	ErrInvalidHistory      = errors.New("history turns must have role user or assistant and non-empty content")
	ErrEmptyIndex          = errors.New("no documents have been ingested yet; run scrape, process and ingest first")
	ErrUpstreamUnavailable = errors.New("embedding or language model service is unavailable")
	ErrNotConfigured       = errors.New("question answering is not configured")
)

type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]vectorstore.Hit, error)
	Count(ctx context.Context, collection string) (int64, error)
}

type AskParams struct {
	Question string
	// Zero selects DefaultK.
	K       int
	History []model.ChatTurn
}

type Answer struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []vectorstore.Hit `json:"sources"`
}

// Service answers questions over the ingested sentences. Calls share no
// mutable state and may run concurrently with pipeline jobs.
type Service interface {
	Ask(ctx context.Context, params AskParams) (Answer, error)
	Search(ctx context.Context, query string, k int) ([]vectorstore.Hit, error)
}

type Config struct {
	Collection  string
	MaxK        int
	MaxTokens   int
	CallTimeout time.Duration
	Retry       llm.RetryPolicy
}

type service struct {
	chat     llm.ChatClient
	embedder llm.Embedder
	vectors  Searcher
	cfg      Config
}

// NewService builds the query service. chat may be nil, in which case Ask
// returns ErrNotConfigured and Search still works.
func NewService(chat llm.ChatClient, embedder llm.Embedder, vectors Searcher, cfg Config) Service {
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultMaxK
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	return &service{chat: chat, embedder: embedder, vectors: vectors, cfg: cfg}
}

func (s *service) Ask(ctx context.Context, params AskParams) (Answer, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	k, err := s.resolveK(params.K)
	if err != nil {
		return Answer{}, err
	}
	history, err := trimHistory(params.History)
	if err != nil {
		return Answer{}, err
	}
	if s.chat == nil || s.embedder == nil || s.vectors == nil {
		return Answer{}, ErrNotConfigured
	}

	hits, err := s.retrieve(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}

	req := llm.ChatRequest{
		Messages:    buildMessages(question, hits, history),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: llm.Temp(0.3),
	}
	resp, err := llm.Retry(ctx, s.cfg.Retry, func(ctx context.Context) (*llm.ChatResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		return s.chat.Complete(callCtx, req)
	})
	if err != nil {
		return Answer{}, upstream(ctx, "generating answer", err)
	}

	slog.InfoContext(ctx, "question answered",
		"k", k,
		"hits", len(hits),
		"history_turns", len(history),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return Answer{Question: question, Answer: strings.TrimSpace(resp.Content), Sources: hits}, nil
}

func (s *service) Search(ctx context.Context, query string, k int) ([]vectorstore.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuestion
	}
	k, err := s.resolveK(k)
	if err != nil {
		return nil, err
	}
	if s.embedder == nil || s.vectors == nil {
		return nil, ErrNotConfigured
	}
	return s.retrieve(ctx, query, k)
}

// retrieve embeds the query and returns its nearest sentences. The index is
// checked first so an empty collection never costs an embedding call.
func (s *service) retrieve(ctx context.Context, query string, k int) ([]vectorstore.Hit, error) {
	count, err := s.vectors.Count(ctx, s.cfg.Collection)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) || (err == nil && count == 0) {
		return nil, ErrEmptyIndex
	}
	if err != nil {
		return nil, fmt.Errorf("counting points: %w", err)
	}

	vectors, err := llm.Retry(ctx, s.cfg.Retry, func(ctx context.Context) ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		return s.embedder.Embed(callCtx, []string{query})
	})
	if err != nil {
		return nil, upstream(ctx, "embedding question", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for one question", ErrUpstreamUnavailable, len(vectors))
	}

	hits, err := s.vectors.Search(ctx, s.cfg.Collection, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.cfg.Collection, err)
	}
	if len(hits) == 0 {
		return nil, ErrEmptyIndex
	}
	return hits, nil
}

func (s *service) resolveK(k int) (int, error) {
	switch {
	case k == 0:
		return min(DefaultK, s.cfg.MaxK), nil
	case k < 0 || k > s.cfg.MaxK:
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidK, s.cfg.MaxK)
	default:
		return k, nil
	}
}

// trimHistory validates the turns and keeps the most recent ones.
func trimHistory(history []model.ChatTurn) ([]model.ChatTurn, error) {
	for _, turn := range history {
		if turn.Role != model.ChatRoleUser && turn.Role != model.ChatRoleAssistant {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidHistory, turn.Role)
		}
		if strings.TrimSpace(turn.Content) == "" {
			return nil, ErrInvalidHistory
		}
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	return history, nil
}

// upstream reports an exhausted upstream call. A caller that went away gets its own context error back.
func upstream(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, what, err)
}
