package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	noisePatterns = compileAll(
		`(?i)PAGE\s+\d+`,
		`(?i)waga\s+[\d.]+`,
		`ዋጋ\s+[\d.]+`,
		`(?i)ISSUE\s+\d+`,
		`(?i)VOL\s+\d+`,
		`(?i)VOLUME\s+\d+`,
		`\d{1,2}/\d{1,2}/\d{4}`,
		`\d{4}-\d{2}-\d{2}`,
		`©\s*\d{4}`,
		`(?i)All rights reserved`,
		`(?i)https?://\S+`,
		`(?i)www\.\S+`,
	)
	latinWord   = regexp.MustCompile(`\b[a-zA-Z]+\b`)
	navPatterns = compileAll(
		`•`, `▪`, `&`, `±±`, `——`,
		`\(\([^)]*\)\)`,
		`\b\d+\s*[a-zA-Z]+\b`,
	)
	disallowed = regexp.MustCompile(`[^\x{1200}-\x{137F}\x{0000}-\x{007F}\x{2000}-\x{206F}]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Layout glyphs that mark a line as decoration rather than prose.
const specialChars = "•●○■□▪▫▲▼◄►◆◇◈◉◊※‹›«»\"“”'‘’±—&()[]{}"

const maxSpecialRatio = 0.15

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// CleanText strips newspaper furniture (page numbers, prices, dates, URLs,
// Latin words, decoration lines) from extracted text and collapses it to a
// single line of Ge'ez prose.
func CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = latinWord.ReplaceAllString(text, "")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || decorative(line) {
			continue
		}
		if utf8.RuneCountInString(line) < 10 && geezCount(line) < 3 {
			continue
		}
		for _, re := range navPatterns {
			line = re.ReplaceAllString(line, "")
		}
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}

	text = strings.Join(kept, "\n")
	text = disallowed.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func decorative(line string) bool {
	special, total := 0, 0
	for _, r := range line {
		if r == ' ' {
			continue
		}
		total++
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	return total > 0 && float64(special)/float64(total) > maxSpecialRatio
}

func geezCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x1200 && r <= 0x137F {
			n++
		}
	}
	return n
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}
