package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tigrinya.news/pipeline/internal/model"
)

type CollectParams struct {
	MaxArticles int
	MaxPages    int
	// Optional inclusive date range on the listing dates.
	StartDate *time.Time
	EndDate   *time.Time
}

type listingItem struct {
	url  string
	date *time.Time
}

// Collect walks the newspaper's listing pages and returns article URLs, newest
// first. onPage runs before each page is fetched; an error from it aborts the walk.
// Only an unreachable first page is an error. Later failures end the walk with
// what was collected so far.
func (c *Client) Collect(ctx context.Context, np model.Newspaper, params CollectParams, onPage func(model.CollectProgress) error) ([]string, error) {
	base := strings.TrimRight(np.BaseURL, "/")
	seen := map[string]bool{}
	var urls []string

	for page := 1; page <= params.MaxPages; page++ {
		if onPage != nil {
			if err := onPage(model.CollectProgress{Page: page, URLsFound: len(urls)}); err != nil {
				return nil, err
			}
		}

		pageURL := base
		if page > 1 {
			pageURL = fmt.Sprintf("%s/page/%d/", base, page)
		}

		var items []listingItem
		err := c.fetch(ctx, pageURL, func(body io.Reader) error {
			var err error
			items, err = parseListing(body, pageURL, np.LinkFilter)
			return err
		})
		if err != nil {
			if page == 1 || ctx.Err() != nil {
				return nil, fmt.Errorf("listing page %d: %w", page, err)
			}
			slog.WarnContext(ctx, "listing page unreachable, stopping", "page", page, "error", err)
			break
		}

		added := 0
		pastRange := false
		for _, item := range items {
			if seen[item.url] {
				continue
			}
			seen[item.url] = true

			if item.date != nil {
				if params.StartDate != nil && item.date.Before(*params.StartDate) {
					pastRange = true
					continue
				}
				if params.EndDate != nil && item.date.After(endOfDay(*params.EndDate)) {
					continue
				}
			}
			urls = append(urls, item.url)
			added++
			if len(urls) >= params.MaxArticles {
				return urls, nil
			}
		}

		slog.DebugContext(ctx, "listing page collected", "page", page, "links", len(items), "added", added)

		if len(items) == 0 || pastRange {
			break
		}
	}

	return urls, nil
}

func parseListing(body io.Reader, pageURL, filter string) ([]listingItem, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	sel := fmt.Sprintf(`a.post-url[href*=%q]`, filter)
	var items []listingItem
	doc.Find("article.listing-item").Each(func(_ int, article *goquery.Selection) {
		href, ok := article.Find(sel).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		item := listingItem{url: abs.String()}
		if dt, ok := article.Find("time[datetime]").First().Attr("datetime"); ok {
			item.date = parseDate(dt)
		}
		items = append(items, item)
	})
	return items, nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return &t
		}
	}
	return nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
