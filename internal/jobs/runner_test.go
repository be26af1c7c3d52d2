package jobs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/model"
)

type recordingObserver struct {
	mu      sync.Mutex
	records []model.JobRecord
}

func (o *recordingObserver) Observe(_ context.Context, rec model.JobRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
	return nil
}

func (o *recordingObserver) Records() []model.JobRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.JobRecord(nil), o.records...)
}

// blockingTask parks until release is closed, then returns result.
func blockingTask(release <-chan struct{}, result any) jobs.Task {
	return func(ctx context.Context, rep *jobs.Reporter) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return result, nil
	}
}

func terminal(runner *jobs.Runner, kind model.JobKind) func() bool {
	return func() bool {
		rec, ok := runner.Status(kind)
		return ok && rec.Terminal()
	}
}

var _ = Describe("Runner", func() {
	var (
		ctx      context.Context
		store    *jobs.StatusStore
		runner   *jobs.Runner
		observer *recordingObserver
		nextID   atomic.Int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = jobs.NewStatusStore()
		observer = &recordingObserver{}
		nextID.Store(0)
		runner = jobs.NewRunner(store,
			jobs.WithObservers(observer),
			jobs.WithIDGenerator(func() int64 { return nextID.Add(1) }),
		)
	})

	AfterEach(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		Expect(runner.Shutdown(shutdownCtx)).To(Succeed())
	})

	Describe("Start", func() {
		It("publishes a starting record before returning", func() {
			release := make(chan struct{})
			defer close(release)

			rec, err := runner.Start(ctx, model.JobKindScrape, blockingTask(release, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Running).To(BeTrue())
			Expect(*rec.Stage).To(Equal(model.StageStarting))
			Expect(rec.Result).To(BeNil())
			Expect(rec.Error).To(BeNil())
			Expect(rec.StartedAt).NotTo(BeNil())

			stored, ok := store.Get(model.JobKindScrape)
			Expect(ok).To(BeTrue())
			Expect(stored.RunID).To(Equal(rec.RunID))
			Expect(stored.Running).To(BeTrue())
		})

		It("rejects a second run of the same kind without touching the in-flight record", func() {
			release := make(chan struct{})
			moved := make(chan struct{})

			first, err := runner.Start(ctx, model.JobKindScrape, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				if err := rep.Stage(ctx, model.StageDownloading, model.DownloadProgress{Current: 3, Total: 10}); err != nil {
					return nil, err
				}
				close(moved)
				<-release
				return model.ScrapeResult{Successful: 10, Total: 10}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Eventually(moved).Should(BeClosed())

			before, _ := store.Get(model.JobKindScrape)

			current, err := runner.Start(ctx, model.JobKindScrape, blockingTask(release, nil))
			Expect(err).To(MatchError(jobs.ErrAlreadyRunning))
			Expect(current.RunID).To(Equal(first.RunID))

			after, _ := store.Get(model.JobKindScrape)
			Expect(after).To(Equal(before))
			Expect(*after.Stage).To(Equal(model.StageDownloading))

			close(release)
			Eventually(terminal(runner, model.JobKindScrape)).Should(BeTrue())
		})

		It("runs different kinds concurrently", func() {
			release := make(chan struct{})
			defer close(release)

			_, err := runner.Start(ctx, model.JobKindScrape, blockingTask(release, nil))
			Expect(err).NotTo(HaveOccurred())
			_, err = runner.Start(ctx, model.JobKindIngest, blockingTask(release, nil))
			Expect(err).NotTo(HaveOccurred())

			scrape, _ := runner.Status(model.JobKindScrape)
			ingest, _ := runner.Status(model.JobKindIngest)
			Expect(scrape.Running).To(BeTrue())
			Expect(ingest.Running).To(BeTrue())
		})

		It("accepts exactly one of many concurrent starts of one kind", func() {
			release := make(chan struct{})
			defer close(release)

			var accepted, rejected atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, err := runner.Start(ctx, model.JobKindScrape, blockingTask(release, nil))
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, jobs.ErrAlreadyRunning):
						rejected.Add(1)
					default:
						Fail("unexpected error: " + err.Error())
					}
				}()
			}
			close(start)
			wg.Wait()

			Expect(accepted.Load()).To(Equal(int32(1)))
			Expect(rejected.Load()).To(Equal(int32(31)))
		})

		It("rejects unknown kinds", func() {
			_, err := runner.Start(ctx, "reindex", blockingTask(nil, nil))
			Expect(err).To(MatchError(jobs.ErrUnknownKind))
		})

		It("accepts a new run once the previous one finished", func() {
			first, err := runner.Start(ctx, model.JobKindProcess, func(context.Context, *jobs.Reporter) (any, error) {
				return model.ProcessResult{Processed: 1}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Eventually(terminal(runner, model.JobKindProcess)).Should(BeTrue())

			second, err := runner.Start(ctx, model.JobKindProcess, func(context.Context, *jobs.Reporter) (any, error) {
				return model.ProcessResult{Processed: 0}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.RunID).NotTo(Equal(first.RunID))
		})
	})

	Describe("terminal records", func() {
		It("stores the result on success", func() {
			_, err := runner.Start(ctx, model.JobKindIngest, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				if err := rep.Stage(ctx, model.StageEmbedding, model.EmbedProgress{Batch: 1, Batches: 1}); err != nil {
					return nil, err
				}
				return model.IngestResult{Count: 4, PointsCount: 4, Collection: "c"}, nil
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindIngest)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Running).To(BeFalse())
			Expect(rec.Error).To(BeNil())
			Expect(rec.Result).To(Equal(model.IngestResult{Count: 4, PointsCount: 4, Collection: "c"}))
			Expect(rec.EndedAt).NotTo(BeNil())
			Expect(*rec.Stage).To(Equal(model.StageEmbedding))
			Expect(rec.Succeeded()).To(BeTrue())
		})

		It("stores the error and keeps the last progress on failure", func() {
			_, err := runner.Start(ctx, model.JobKindScrape, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				_ = rep.Stage(ctx, model.StageDownloading, model.DownloadProgress{Current: 7, Total: 20, Successful: 6})
				return nil, errors.New("network unreachable")
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindScrape)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Running).To(BeFalse())
			Expect(rec.Result).To(BeNil())
			Expect(*rec.Error).To(Equal("network unreachable"))
			Expect(rec.Progress).To(Equal(model.DownloadProgress{Current: 7, Total: 20, Successful: 6}))
			Expect(rec.Failed()).To(BeTrue())
		})

		It("turns a panic into an error record", func() {
			_, err := runner.Start(ctx, model.JobKindProcess, func(context.Context, *jobs.Reporter) (any, error) {
				panic("boom")
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindProcess)
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec.Error).To(Equal("panic: boom"))
			Expect(rec.Result).To(BeNil())
		})

		It("never sets both result and error", func() {
			_, err := runner.Start(ctx, model.JobKindIngest, func(context.Context, *jobs.Reporter) (any, error) {
				return model.IngestResult{Count: 1}, errors.New("late failure")
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindIngest)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Error).NotTo(BeNil())
			Expect(rec.Result).To(BeNil())
		})
	})

	Describe("Cancel", func() {
		It("stops the run at the next stage checkpoint", func() {
			reached := make(chan struct{})
			proceed := make(chan struct{})
			var stagesAfterCancel atomic.Int32

			_, err := runner.Start(ctx, model.JobKindScrape, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				if err := rep.Stage(ctx, model.StageCollecting, nil); err != nil {
					return nil, err
				}
				close(reached)
				<-proceed
				if err := rep.Stage(ctx, model.StageDownloading, nil); err != nil {
					return nil, err
				}
				stagesAfterCancel.Add(1)
				return "done", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Eventually(reached).Should(BeClosed())

			Expect(runner.Cancel(model.JobKindScrape)).To(BeTrue())
			close(proceed)

			rec, err := runner.Wait(ctx, model.JobKindScrape)
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec.Error).To(Equal(jobs.ErrCancelled.Error()))
			Expect(*rec.Stage).To(Equal(model.StageCollecting))
			Expect(stagesAfterCancel.Load()).To(BeZero())
		})

		It("returns false when nothing runs", func() {
			Expect(runner.Cancel(model.JobKindIngest)).To(BeFalse())
		})
	})

	Describe("timeouts", func() {
		It("fails runs that exceed the job timeout", func() {
			runner = jobs.NewRunner(store, jobs.WithTimeout(20*time.Millisecond))

			_, err := runner.Start(ctx, model.JobKindIngest, blockingTask(make(chan struct{}), nil))
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindIngest)
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec.Error).To(ContainSubstring("job exceeded 20ms"))
		})
	})

	Describe("Wait", func() {
		It("reports kinds that never ran", func() {
			_, err := runner.Wait(ctx, model.JobKindIngest)
			Expect(err).To(MatchError(jobs.ErrNotStarted))
		})

		It("gives up when the caller's context ends", func() {
			release := make(chan struct{})
			defer close(release)
			_, err := runner.Start(ctx, model.JobKindIngest, blockingTask(release, nil))
			Expect(err).NotTo(HaveOccurred())

			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			_, err = runner.Wait(waitCtx, model.JobKindIngest)
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("observers", func() {
		It("see every record in publish order", func() {
			_, err := runner.Start(ctx, model.JobKindProcess, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				if err := rep.Stage(ctx, model.StageExtracting, model.ExtractProgress{Total: 2}); err != nil {
					return nil, err
				}
				rep.Progress(ctx, model.ExtractProgress{Current: 1, Total: 2})
				rep.Progress(ctx, model.ExtractProgress{Current: 2, Total: 2})
				return model.ProcessResult{Processed: 2}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = runner.Wait(ctx, model.JobKindProcess)
			Expect(err).NotTo(HaveOccurred())

			records := observer.Records()
			Expect(records).To(HaveLen(5))
			Expect(*records[0].Stage).To(Equal(model.StageStarting))
			Expect(*records[1].Stage).To(Equal(model.StageExtracting))
			Expect(records[3].Progress).To(Equal(model.ExtractProgress{Current: 2, Total: 2}))
			Expect(records[4].Running).To(BeFalse())
			Expect(records[4].Result).To(Equal(model.ProcessResult{Processed: 2}))
		})

		It("ignore updates from a reporter that outlived its run", func() {
			var leaked *jobs.Reporter
			_, err := runner.Start(ctx, model.JobKindProcess, func(_ context.Context, rep *jobs.Reporter) (any, error) {
				leaked = rep
				return "ok", nil
			})
			Expect(err).NotTo(HaveOccurred())
			final, err := runner.Wait(ctx, model.JobKindProcess)
			Expect(err).NotTo(HaveOccurred())

			leaked.Progress(ctx, "late")

			rec, _ := runner.Status(model.JobKindProcess)
			Expect(rec).To(Equal(final))
		})

		It("give up on an observer that stalls", func() {
			var (
				mu        sync.Mutex
				deadlines int
			)
			stalled := jobs.ObserverFunc(func(ctx context.Context, _ model.JobRecord) error {
				if _, ok := ctx.Deadline(); ok {
					mu.Lock()
					deadlines++
					mu.Unlock()
				}
				<-ctx.Done()
				return ctx.Err()
			})
			runner = jobs.NewRunner(store,
				jobs.WithObservers(stalled),
				jobs.WithObserverTimeout(10*time.Millisecond),
			)

			_, err := runner.Start(ctx, model.JobKindScrape, func(ctx context.Context, rep *jobs.Reporter) (any, error) {
				for i := 1; i <= 3; i++ {
					if err := rep.Stage(ctx, model.StageDownloading, model.DownloadProgress{Current: i, Total: 3}); err != nil {
						return nil, err
					}
				}
				return model.ScrapeResult{Successful: 3, Total: 3}, nil
			})
			Expect(err).NotTo(HaveOccurred())

			waitCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			rec, err := runner.Wait(waitCtx, model.JobKindScrape)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Succeeded()).To(BeTrue())

			mu.Lock()
			defer mu.Unlock()
			// starting, three stage updates and the terminal record
			Expect(deadlines).To(Equal(5))
		})

		It("do not fail the run when they error", func() {
			runner = jobs.NewRunner(store, jobs.WithObservers(jobs.ObserverFunc(func(context.Context, model.JobRecord) error {
				return errors.New("redis down")
			})))

			_, err := runner.Start(ctx, model.JobKindIngest, func(context.Context, *jobs.Reporter) (any, error) {
				return "ok", nil
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := runner.Wait(ctx, model.JobKindIngest)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Succeeded()).To(BeTrue())
		})
	})
})
