package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/core/config"
)

var _ = Describe("WithLogFields", func() {
	It("merges newer values over older ones", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			JobKind:   logger.Ptr("scrape"),
			Component: "pipeline.scraper",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			RunID: logger.Ptr(int64(7)),
			Stage: logger.Ptr("downloading"),
		})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.JobKind).To(Equal("scrape"))
		Expect(*fields.RunID).To(Equal(int64(7)))
		Expect(*fields.Stage).To(Equal("downloading"))
		Expect(fields.Component).To(Equal("pipeline.scraper"))
	})

	It("returns empty fields for a bare context", func() {
		Expect(logger.GetLogFields(context.Background())).To(Equal(logger.LogFields{}))
	})
})

var _ = Describe("TraceHandler", func() {
	It("adds context fields to JSON records", func() {
		var buf bytes.Buffer
		log := slog.New(logger.NewHandler(config.Config{Env: "production"}, &buf))

		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			JobKind:  logger.Ptr("process"),
			RunID:    logger.Ptr(int64(99)),
			Filename: logger.Ptr("2024-01-01_ሓዳስ.pdf"),
		})
		log.InfoContext(ctx, "extracted text", "words", 12)

		var rec map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &rec)).To(Succeed())
		Expect(rec["job_kind"]).To(Equal("process"))
		Expect(rec["run_id"]).To(BeNumerically("==", 99))
		Expect(rec["filename"]).To(Equal("2024-01-01_ሓዳስ.pdf"))
		Expect(rec["words"]).To(BeNumerically("==", 12))
		Expect(rec).NotTo(HaveKey("trace_id"))
	})
})

var _ = Describe("Truncate", func() {
	DescribeTable("cuts on rune boundaries",
		func(in string, max int, want string) {
			Expect(logger.Truncate(in, max)).To(Equal(want))
		},
		Entry("short string unchanged", "abc", 5, "abc"),
		Entry("ascii truncated", "abcdef", 3, "abc..."),
		Entry("ge'ez truncated", "ኤርትራ ሃገር", 4, "ኤርትራ..."),
		Entry("exact length unchanged", "ኤርትራ", 4, "ኤርትራ"),
	)
})
