package nl2sql

import (
	"regexp"
	"strings"
	"sync"
)

const (
	wordChars = `\p{L}\p{N}_`
	// bow and eow delimit a word without relying on ASCII-only \b.
	bow  = `(?:^|[^` + wordChars + `])`
	eow  = `(?:$|[^` + wordChars + `])`
	word = `[` + wordChars + `]+`
)

var wordPatternCache sync.Map

// wordRegexp matches phrase as a whole word or whole phrase. Group 1 spans the phrase.
func wordRegexp(phrase string) *regexp.Regexp {
	if cached, ok := wordPatternCache.Load(phrase); ok {
		return cached.(*regexp.Regexp)
	}
	compiled := regexp.MustCompile(bow + `(` + regexp.QuoteMeta(phrase) + `)` + eow)
	wordPatternCache.Store(phrase, compiled)
	return compiled
}

func containsWord(text, phrase string) bool {
	return wordRegexp(phrase).MatchString(text)
}

func containsAnyWord(text string, phrases ...string) bool {
	for _, phrase := range phrases {
		if containsWord(text, phrase) {
			return true
		}
	}
	return false
}

// textAfterWord returns the text following the first whole-word occurrence of phrase.
func textAfterWord(text, phrase string) (string, bool) {
	loc := wordRegexp(phrase).FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[3]:], true
}

// leading compiles pattern anchored on a word start.
func leading(pattern string) *regexp.Regexp {
	return regexp.MustCompile(bow + `(?:` + pattern + `)`)
}

// bounded compiles pattern anchored on both word edges.
func bounded(pattern string) *regexp.Regexp {
	return regexp.MustCompile(bow + `(?:` + pattern + `)` + eow)
}

func untilPeriod(text string) string {
	if idx := strings.Index(text, "."); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

var firstWordPattern = regexp.MustCompile(word)

func firstWord(text string) string {
	return firstWordPattern.FindString(text)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
