package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/store"
)

var _ = Describe("FileStore", func() {
	var (
		ctx context.Context
		dir string
		fs  *store.FileStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()

		var err error
		fs, err = store.NewFileStore(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates the pdf directory", func() {
		info, err := os.Stat(fs.PDFDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("returns nothing before anything is written", func() {
		metadata, err := fs.Metadata(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(metadata).To(BeEmpty())

		articles, err := fs.Articles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(articles).To(BeEmpty())
	})

	Describe("UpsertMetadata", func() {
		It("assigns increasing indices to new articles", func() {
			first, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/a"})
			Expect(err).NotTo(HaveOccurred())
			second, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/b"})
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Index).To(Equal(0))
			Expect(second.Index).To(Equal(1))
		})

		It("replaces an entry with the same article url and keeps its index", func() {
			_, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/a", DownloadStatus: model.DownloadFailed})
			Expect(err).NotTo(HaveOccurred())
			_, err = fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/b"})
			Expect(err).NotTo(HaveOccurred())

			updated, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/a", DownloadStatus: model.DownloadCompleted})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Index).To(Equal(0))

			metadata, err := fs.Metadata(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(metadata).To(HaveLen(2))
			Expect(metadata[0].DownloadStatus).To(Equal(model.DownloadCompleted))
		})

		It("keeps every entry under concurrent writers", func() {
			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: fmt.Sprintf("https://example.com/%d", i)})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			metadata, err := fs.Metadata(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(metadata).To(HaveLen(20))

			seen := map[int]bool{}
			for _, m := range metadata {
				seen[m.Index] = true
			}
			Expect(seen).To(HaveLen(20))
		})

		It("leaves no temporary files behind", func() {
			_, err := fs.UpsertMetadata(ctx, model.PDFMetadata{ArticleURL: "https://example.com/a"})
			Expect(err).NotTo(HaveOccurred())

			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			Expect(names).To(ConsistOf("pdf_metadata.json", "pdfs"))
		})
	})

	Describe("articles", func() {
		It("upserts by pdf filename and looks up by index", func() {
			Expect(fs.UpsertArticle(ctx, model.Article{Index: 3, PDFFilename: "c.pdf", ProcessingStatus: model.ProcessingFailed})).To(Succeed())
			Expect(fs.UpsertArticle(ctx, model.Article{Index: 1, PDFFilename: "a.pdf", ProcessingStatus: model.ProcessingCompleted})).To(Succeed())
			Expect(fs.UpsertArticle(ctx, model.Article{Index: 3, PDFFilename: "c.pdf", ProcessingStatus: model.ProcessingCompleted, WordCount: 12})).To(Succeed())

			articles, err := fs.Articles(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(articles).To(HaveLen(2))
			Expect(articles[0].PDFFilename).To(Equal("a.pdf"))

			article, err := fs.Article(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(article.ProcessingStatus).To(Equal(model.ProcessingCompleted))
			Expect(article.WordCount).To(Equal(12))
		})

		It("returns ErrNotFound for an unknown index", func() {
			_, err := fs.Article(ctx, 42)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("reports a corrupt file", func() {
			Expect(os.WriteFile(filepath.Join(dir, "raw_data.json"), []byte("{not json"), 0o644)).To(Succeed())

			_, err := fs.Articles(ctx)
			Expect(err).To(MatchError(ContainSubstring("decoding raw_data.json")))
		})
	})

	Describe("Validate", func() {
		It("cross-checks downloads, files and processed text", func() {
			present := filepath.Join(fs.PDFDir(), "present.pdf")
			Expect(os.WriteFile(present, []byte("%PDF"), 0o644)).To(Succeed())

			for _, m := range []model.PDFMetadata{
				{ArticleURL: "a", DownloadStatus: model.DownloadCompleted, PDFFilepath: present},
				{ArticleURL: "b", DownloadStatus: model.DownloadCompleted, PDFFilepath: filepath.Join(fs.PDFDir(), "gone.pdf")},
				{ArticleURL: "c", DownloadStatus: model.DownloadFailed},
			} {
				_, err := fs.UpsertMetadata(ctx, m)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(fs.UpsertArticle(ctx, model.Article{PDFFilename: "present.pdf", ProcessingStatus: model.ProcessingCompleted, WordCount: 40})).To(Succeed())
			Expect(fs.UpsertArticle(ctx, model.Article{PDFFilename: "other.pdf", ProcessingStatus: model.ProcessingFailed, WordCount: 7})).To(Succeed())

			summary, err := fs.Validate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(Equal(model.ValidationSummary{
				PDFMetadataCount:   3,
				CompletedDownloads: 2,
				FailedDownloads:    1,
				RawDataCount:       2,
				ProcessedArticles:  1,
				TotalWords:         40,
				MissingFiles:       1,
			}))
		})
	})
})
