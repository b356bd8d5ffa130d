package commentary

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxPromptName     = 24
	maxPromptCategory = 64
)

var (
	markupRe   = regexp.MustCompile(`<[^>]*>|[{}\[\]<>` + "`" + `]`)
	roleWordRe = regexp.MustCompile(`(?i)\b(system|assistant|user|developer)\s*:|ignore (all )?(previous|prior) instructions`)
)

// SanitizeName makes a user supplied name safe to embed in a generation
// prompt: compatibility folding, no markup, no control characters, no role
// markers, bounded length.
func SanitizeName(name string) string {
	return sanitizePrompt(name, maxPromptName, "someone")
}

// SanitizeCategory applies the same rules to a client chosen category.
func SanitizeCategory(category string) string {
	return sanitizePrompt(category, maxPromptCategory, "mixed")
}

func sanitizePrompt(raw string, maxRunes int, fallback string) string {
	s := norm.NFKC.String(raw)
	s = markupRe.ReplaceAllString(s, "")
	s = roleWordRe.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxRunes]))
	}
	if s == "" {
		return fallback
	}
	return s
}

func sanitizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = SanitizeName(n)
	}
	return out
}
