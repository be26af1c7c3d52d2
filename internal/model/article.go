package model

type Newspaper struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	// Substring every article link on a listing page must contain.
	LinkFilter string `json:"-"`
}

type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// PDFMetadata is one scraped article and the state of its PDF download.
type PDFMetadata struct {
	Index                int            `json:"index"`
	NewspaperID          string         `json:"newspaper_id"`
	ArticleURL           string         `json:"article_url"`
	Title                string         `json:"title"`
	Date                 string         `json:"date"`
	PDFURL               string         `json:"pdf_url,omitempty"`
	PDFFilename          string         `json:"pdf_filename,omitempty"`
	PDFFilepath          string         `json:"pdf_filepath,omitempty"`
	DownloadStatus       DownloadStatus `json:"download_status"`
	TextExtractionStatus string         `json:"text_extraction_status,omitempty"`
	Error                *string        `json:"error,omitempty"`
}

// Article is the processed form of a downloaded PDF.
type Article struct {
	Index            int                `json:"index"`
	NewsTitle        string             `json:"news_title"`
	ArticleURL       string             `json:"article_url"`
	PublicationDate  string             `json:"publication_date"`
	PDFFilename      string             `json:"pdf_filename"`
	PDFURL           string             `json:"pdf_url"`
	ExtractedText    string             `json:"extracted_text"`
	WordCount        int                `json:"word_count"`
	ProcessingStatus ProcessingStatus   `json:"processing_status"`
	Entities         *Entities          `json:"entities,omitempty"`
	Images           []ImageDescription `json:"images,omitempty"`
	Error            *string            `json:"error,omitempty"`
}

// Entities are named entities kept in their original Tigrinya spelling.
type Entities struct {
	People        []string `json:"people" jsonschema_description:"Names of people"`
	Locations     []string `json:"locations" jsonschema_description:"Names of places"`
	Organizations []string `json:"organizations" jsonschema_description:"Names of organizations"`
}

type ImageDescription struct {
	Image       string `json:"image"`
	Description string `json:"description"`
}

// ValidationSummary cross-checks the metadata file, the processed articles and the extracted text.
type ValidationSummary struct {
	PDFMetadataCount   int `json:"pdf_metadata_count"`
	CompletedDownloads int `json:"completed_downloads"`
	FailedDownloads    int `json:"failed_downloads"`
	RawDataCount       int `json:"raw_data_count"`
	ProcessedArticles  int `json:"processed_articles"`
	TotalWords         int `json:"total_words"`
	MissingFiles       int `json:"missing_files"`
}
