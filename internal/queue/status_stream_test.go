package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/queue"
)

var _ = Describe("StatusStream", func() {
	var (
		ctx    context.Context
		client *mockStreamClient
		stream *queue.StatusStream
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockStreamClient{}
		stream = queue.NewStatusStream(client, "status", 50)
	})

	It("appends each record to its kind's capped stream", func() {
		stage := model.StageDownloading
		rec := model.JobRecord{
			Kind:     model.JobKindScrape,
			RunID:    42,
			Running:  true,
			Stage:    &stage,
			Progress: model.DownloadProgress{Current: 3, Total: 10, Successful: 3},
		}

		Expect(stream.Observe(ctx, rec)).To(Succeed())
		Expect(client.adds).To(HaveLen(1))

		args := client.adds[0]
		Expect(args.Stream).To(Equal("status:scrape"))
		Expect(args.MaxLen).To(Equal(int64(50)))
		Expect(args.Approx).To(BeTrue())

		values := args.Values.(map[string]any)
		Expect(values).To(HaveKeyWithValue("status", "running"))
		Expect(values).To(HaveKeyWithValue("stage", "downloading"))
		Expect(values["record"]).To(MatchJSON(`{
			"kind": "scrape", "run_id": "42", "running": true, "stage": "downloading",
			"progress": {"current": 3, "total": 10, "successful": 3, "failed": 0},
			"result": null, "error": null
		}`))
	})

	It("applies defaults", func() {
		stream = queue.NewStatusStream(client, "", 0)
		Expect(stream.Stream(model.JobKindIngest)).To(Equal("pipeline-status:ingest"))
	})

	It("reports redis failures", func() {
		client.addErr = errors.New("connection refused")
		err := stream.Observe(ctx, model.JobRecord{Kind: model.JobKindIngest})
		Expect(err).To(MatchError(ContainSubstring("stream=status:ingest")))
	})

	Describe("Read", func() {
		It("returns the records after the given id", func() {
			client.streams = []redis.XStream{{
				Stream: "status:process",
				Messages: []redis.XMessage{
					{ID: "1-0", Values: map[string]any{"record": `{"kind":"process"}`}},
					{ID: "2-0", Values: map[string]any{"status": "running"}},
				},
			}}

			events, err := stream.Read(ctx, model.JobKindProcess, "0-0", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]queue.StatusEvent{{ID: "1-0", Record: json.RawMessage(`{"kind":"process"}`)}}))

			Expect(client.reads[0].Streams).To(Equal([]string{"status:process", "0-0"}))
			Expect(client.reads[0].Block).To(Equal(time.Second))
		})

		It("waits for new records by default", func() {
			_, err := stream.Read(ctx, model.JobKindProcess, "", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(client.reads[0].Streams[1]).To(Equal("$"))
		})

		It("treats a timed out wait as no records", func() {
			client.readErr = redis.Nil
			events, err := stream.Read(ctx, model.JobKindProcess, "$", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})
})
