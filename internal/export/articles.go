package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"tigrinya.news/pipeline/internal/model"
)

const (
	sheet = "Articles"
	// Excel rejects cells longer than this.
	maxCellRunes = 32767
)

var headers = []string{
	"Index",
	"Title",
	"Publication Date",
	"Article URL",
	"PDF Filename",
	"Status",
	"Word Count",
	"People",
	"Locations",
	"Organizations",
	"Extracted Text",
}

// ArticlesXLSX renders the processed articles as a single-sheet workbook.
func ArticlesXLSX(articles []model.Article) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, a := range articles {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, a.Index)
		write(2, a.NewsTitle)
		write(3, a.PublicationDate)
		write(4, a.ArticleURL)
		write(5, a.PDFFilename)
		write(6, string(a.ProcessingStatus))
		write(7, a.WordCount)
		if a.Entities != nil {
			write(8, strings.Join(a.Entities.People, ", "))
			write(9, strings.Join(a.Entities.Locations, ", "))
			write(10, strings.Join(a.Entities.Organizations, ", "))
		}
		write(11, truncate(a.ExtractedText, maxCellRunes))
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "C", "C", 16)
	_ = f.SetColWidth(sheet, "D", "E", 48)
	_ = f.SetColWidth(sheet, "F", "G", 12)
	_ = f.SetColWidth(sheet, "H", "J", 30)
	_ = f.SetColWidth(sheet, "K", "K", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
