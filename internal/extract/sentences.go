package extract

import (
	"regexp"
	"strings"
)

const (
	DefaultMinWords = 5
	minGeezChars    = 10
)

var (
	sentenceEnd     = regexp.MustCompile(`[።?!.]+\s*`)
	punctuationOnly = regexp.MustCompile(`^[.\-\s።?!,:'"]+$`)
)

// SplitSentences splits on the Ethiopic full stop and ASCII terminators,
// keeping each terminator with its sentence. Fragments shorter than minWords
// words or with fewer than 10 Ge'ez characters are dropped.
func SplitSentences(text string, minWords int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); validSentence(s, minWords) {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); validSentence(s, minWords) {
		sentences = append(sentences, s)
	}
	return sentences
}

func validSentence(s string, minWords int) bool {
	if s == "" || punctuationOnly.MatchString(s) {
		return false
	}
	if len(strings.Fields(s)) < minWords {
		return false
	}
	return geezCount(s) >= minGeezChars
}
