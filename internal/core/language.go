package core

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a user has no chat language configured.
const DefaultLanguage = "en"

// NormalizeLanguage canonicalizes a BCP 47 tag. Unparseable or empty input
// falls back to DefaultLanguage.
func NormalizeLanguage(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return DefaultLanguage
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return DefaultLanguage
	}
	return parsed.String()
}

// SameLanguage reports whether two tags share a base language, so "en-US"
// and "en" need no translation between them.
func SameLanguage(a, b string) bool {
	ta, errA := language.Parse(NormalizeLanguage(a))
	tb, errB := language.Parse(NormalizeLanguage(b))
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	return baseA == baseB
}

// ValidLanguage reports whether tag parses as a BCP 47 language tag.
func ValidLanguage(tag string) bool {
	if strings.TrimSpace(tag) == "" {
		return false
	}
	_, err := language.Parse(tag)
	return err == nil
}
