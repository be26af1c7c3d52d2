package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/internal/model"
)

// StreamClient is the part of *redis.Client the status stream uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
}

// StatusEvent is one published job record as stored in the stream.
type StatusEvent struct {
	ID     string
	Record json.RawMessage
}

// StatusStream appends every published job record to a per-kind redis
// stream so that dashboards can follow a run without polling.
type StatusStream struct {
	client StreamClient
	prefix string
	maxLen int64
}

func NewStatusStream(client StreamClient, prefix string, maxLen int64) *StatusStream {
	if prefix == "" {
		prefix = "pipeline-status"
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &StatusStream{client: client, prefix: prefix, maxLen: maxLen}
}

func (s *StatusStream) Stream(kind model.JobKind) string {
	return s.prefix + ":" + string(kind)
}

// Observe implements jobs.Observer.
func (s *StatusStream) Observe(ctx context.Context, rec model.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	values := map[string]any{
		"run_id": rec.RunID,
		"status": rec.Status(),
		"record": string(data),
	}
	if rec.Stage != nil {
		values["stage"] = string(*rec.Stage)
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.Stream(rec.Kind),
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd status (stream=%s): %w", s.Stream(rec.Kind), err)
	}
	return nil
}

// Read returns the records published after lastID, blocking up to block for
// new ones. Use "$" to wait for the next record only. An empty slice means
// the wait timed out.
func (s *StatusStream) Read(ctx context.Context, kind model.JobKind, lastID string, block time.Duration) ([]StatusEvent, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "pipeline.queue.status"})
	if lastID == "" {
		lastID = "$"
	}

	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.Stream(kind), lastID},
		Count:   100,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StatusEvent{}, nil
		}
		return nil, fmt.Errorf("reading status stream: %w", err)
	}

	events := []StatusEvent{}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values["record"].(string)
			if !ok {
				slog.WarnContext(ctx, "status message without record", "message_id", msg.ID, "stream", stream.Stream)
				continue
			}
			events = append(events, StatusEvent{ID: msg.ID, Record: json.RawMessage(raw)})
		}
	}
	return events, nil
}
