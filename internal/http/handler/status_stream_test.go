package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/internal/http/handler"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/queue"
)

var _ = Describe("StatusStreamHandler", func() {
	var (
		r      *gin.Engine
		reader *mockStatusReader
	)

	BeforeEach(func() {
		r = gin.New()
		reader = &mockStatusReader{}
		h := handler.NewStatusStreamHandler(reader, time.Millisecond)
		r.GET("/pipeline/stream/:kind", h.Stream)
	})

	It("relays records as server-sent events until the client leaves", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var ids []string
		calls := 0
		reader.readFn = func(_ context.Context, kind model.JobKind, lastID string, _ time.Duration) ([]queue.StatusEvent, error) {
			Expect(kind).To(Equal(model.JobKindScrape))
			ids = append(ids, lastID)
			calls++
			switch calls {
			case 1:
				return []queue.StatusEvent{{ID: "1-0", Record: json.RawMessage(`{"kind":"scrape","running":true}`)}}, nil
			case 2:
				return []queue.StatusEvent{}, nil
			default:
				cancel()
				return nil, context.Canceled
			}
		}

		req := httptest.NewRequest(http.MethodGet, "/pipeline/stream/scrape", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))
		body := w.Body.String()
		Expect(body).To(HavePrefix("event: ping\ndata: ready\n\n"))
		Expect(body).To(ContainSubstring("id: 1-0\nevent: status\ndata: {\"kind\":\"scrape\",\"running\":true}\n\n"))
		Expect(ids).To(Equal([]string{"$", "1-0", "1-0"}))
	})

	It("resumes from Last-Event-ID", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var first string
		reader.readFn = func(_ context.Context, _ model.JobKind, lastID string, _ time.Duration) ([]queue.StatusEvent, error) {
			first = lastID
			cancel()
			return nil, context.Canceled
		}

		req := httptest.NewRequest(http.MethodGet, "/pipeline/stream/ingest", nil).WithContext(ctx)
		req.Header.Set("Last-Event-ID", "17-3")
		r.ServeHTTP(httptest.NewRecorder(), req)
		Expect(first).To(Equal("17-3"))
	})

	It("reports read errors on the stream and keeps going", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		reader.readFn = func(context.Context, model.JobKind, string, time.Duration) ([]queue.StatusEvent, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("redis: connection pool timeout")
			}
			cancel()
			return nil, context.Canceled
		}

		req := httptest.NewRequest(http.MethodGet, "/pipeline/stream/process", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		Expect(w.Body.String()).To(ContainSubstring("event: error\n"))
		Expect(calls).To(Equal(2))
	})

	It("rejects unknown kinds", func() {
		w, _ := do(r, http.MethodGet, "/pipeline/stream/everything", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 503 without redis", func() {
		r = gin.New()
		r.GET("/pipeline/stream/:kind", handler.NewStatusStreamHandler(nil, 0).Stream)
		w, _ := do(r, http.MethodGet, "/pipeline/stream/scrape", "")
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
