package scraper

import "tigrinya.news/pipeline/internal/model"

var newspapers = []model.Newspaper{
	{
		ID:         "haddas-ertra",
		Name:       "Haddas Ertra",
		BaseURL:    "https://shabait.com/category/newspapers/haddas-ertra-news",
		LinkFilter: "haddas-ertra",
	},
}

// Newspapers lists the sources that can be scraped.
func Newspapers() []model.Newspaper {
	out := make([]model.Newspaper, len(newspapers))
	copy(out, newspapers)
	return out
}

func LookupNewspaper(id string) (model.Newspaper, bool) {
	for _, n := range newspapers {
		if n.ID == id {
			return n, true
		}
	}
	return model.Newspaper{}, false
}
