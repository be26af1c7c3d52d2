package scraper

import (
	"strings"
	"unicode/utf8"
)

const maxTitleRunes = 120

var unsafeChars = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-",
)

// SafeFilename builds "<date>_<title>.pdf" with path-hostile characters
// replaced by "-".
func SafeFilename(date, title string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		date = "undated"
	}
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return unsafeChars.Replace(date) + "_" + unsafeChars.Replace(title) + ".pdf"
}
