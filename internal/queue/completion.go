package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"tigrinya.news/pipeline/internal/model"
)

// Publisher is the part of *nats.Conn the completion publisher uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type CompletionEvent struct {
	Kind      model.JobKind `json:"kind"`
	RunID     int64         `json:"run_id,string"`
	Status    string        `json:"status"`
	Result    any           `json:"result"`
	Error     *string       `json:"error"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// CompletionPublisher announces finished runs on <subject>.<kind>.
type CompletionPublisher struct {
	conn    Publisher
	subject string
}

func NewCompletionPublisher(conn Publisher, subject string) *CompletionPublisher {
	if subject == "" {
		subject = "pipeline.jobs.completed"
	}
	return &CompletionPublisher{conn: conn, subject: subject}
}

func (p *CompletionPublisher) Subject(kind model.JobKind) string {
	return p.subject + "." + string(kind)
}

// Observe implements jobs.Observer. Records of runs still in flight are ignored.
func (p *CompletionPublisher) Observe(ctx context.Context, rec model.JobRecord) error {
	if !rec.Terminal() {
		return nil
	}

	data, err := json.Marshal(CompletionEvent{
		Kind:      rec.Kind,
		RunID:     rec.RunID,
		Status:    rec.Status(),
		Result:    rec.Result,
		Error:     rec.Error,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding completion: %w", err)
	}

	subject := p.Subject(rec.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing completion (subject=%s): %w", subject, err)
	}

	slog.InfoContext(ctx, "job completion published", "subject", subject, "status", rec.Status())
	return nil
}

// ConnectNATS dials the server and keeps reconnecting for the life of the process.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return conn, nil
}
