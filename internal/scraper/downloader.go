package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoPDFLink = errors.New("no PDF link found")

// Hosts the newspaper PDFs are served from.
var pdfHosts = []string{"erinewspapers.com", "hadas-eritrea"}

// ArticlePage is what Resolve reads from an article page.
type ArticlePage struct {
	Title  string
	Date   string
	PDFURL string
}

func (c *Client) Resolve(ctx context.Context, articleURL string) (ArticlePage, error) {
	var page ArticlePage
	err := c.fetch(ctx, articleURL, func(body io.Reader) error {
		var err error
		page, err = parseArticle(body, articleURL)
		return err
	})
	if err != nil {
		return ArticlePage{}, err
	}
	if page.PDFURL == "" {
		return page, ErrNoPDFLink
	}
	return page, nil
}

func parseArticle(body io.Reader, articleURL string) (ArticlePage, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return ArticlePage{}, fmt.Errorf("parsing article: %w", err)
	}
	base, err := url.Parse(articleURL)
	if err != nil {
		return ArticlePage{}, err
	}

	page := ArticlePage{
		Title: strings.TrimSpace(doc.Find("h1, .entry-title, .post-title").First().Text()),
		Date:  strings.TrimSpace(doc.Find(".entry-date, .post-date, time").First().Text()),
	}

	resolve := func(href string) string {
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return ""
		}
		return u.String()
	}

	// The download icon links straight to the PDF on most issues.
	if href, ok := doc.Find("img.wp-image-77661").First().Closest("a").Attr("href"); ok {
		if strings.HasSuffix(href, ".pdf") || strings.Contains(href, "erinewspapers.com") {
			page.PDFURL = resolve(href)
			return page, nil
		}
	}

	doc.Find(`a[href$=".pdf"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		for _, host := range pdfHosts {
			if strings.Contains(href, host) {
				page.PDFURL = resolve(href)
				return false
			}
		}
		return true
	})
	return page, nil
}

// Download streams the PDF at pdfURL to dest. A partial download never
// replaces dest.
func (c *Client) Download(ctx context.Context, pdfURL, dest string) (int64, error) {
	var written int64
	err := c.fetch(ctx, pdfURL, func(body io.Reader) error {
		tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck

		written, err = io.Copy(tmp, body)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("writing %s: %w", filepath.Base(dest), err)
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), dest)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
