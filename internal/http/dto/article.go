package dto

import "tigrinya.news/pipeline/internal/model"

// ArticleSummary is an article without its extracted text.
type ArticleSummary struct {
	Index            int                    `json:"index"`
	NewsTitle        string                 `json:"news_title"`
	ArticleURL       string                 `json:"article_url"`
	PublicationDate  string                 `json:"publication_date"`
	PDFFilename      string                 `json:"pdf_filename"`
	PDFURL           string                 `json:"pdf_url"`
	WordCount        int                    `json:"word_count"`
	ProcessingStatus model.ProcessingStatus `json:"processing_status"`
	Entities         *model.Entities        `json:"entities,omitempty"`
	ImageCount       int                    `json:"image_count"`
	Error            *string                `json:"error,omitempty"`
}

type ArticlesResponse struct {
	OK       bool             `json:"ok"`
	Total    int              `json:"total"`
	Articles []ArticleSummary `json:"articles"`
}

type ArticleTextResponse struct {
	OK bool `json:"ok"`
	model.Article
}

type MetadataResponse struct {
	OK       bool                `json:"ok"`
	Total    int                 `json:"total"`
	Metadata []model.PDFMetadata `json:"metadata"`
}

type NewspapersResponse struct {
	OK         bool              `json:"ok"`
	Newspapers []model.Newspaper `json:"newspapers"`
}

func ToArticleSummary(a model.Article) ArticleSummary {
	return ArticleSummary{
		Index:            a.Index,
		NewsTitle:        a.NewsTitle,
		ArticleURL:       a.ArticleURL,
		PublicationDate:  a.PublicationDate,
		PDFFilename:      a.PDFFilename,
		PDFURL:           a.PDFURL,
		WordCount:        a.WordCount,
		ProcessingStatus: a.ProcessingStatus,
		Entities:         a.Entities,
		ImageCount:       len(a.Images),
		Error:            a.Error,
	}
}
