package model

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language is a lowercase ISO 639-1 code such as "en" or "de".
type Language string

// ParseLanguage validates an ISO 639-1 code. Region or script subtags are
// rejected; overrides are keyed by base language only.
func ParseLanguage(s string) (Language, error) {
	if len(s) != 2 || strings.ToLower(s) != s {
		return "", fmt.Errorf("invalid language %q: want a lowercase ISO 639-1 code", s)
	}
	base, err := language.ParseBase(s)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	if base.String() != s {
		return "", fmt.Errorf("invalid language %q: canonical form is %q", s, base.String())
	}
	return Language(s), nil
}

func (l Language) String() string { return string(l) }

// SortLanguages returns def followed by the remaining languages in
// lexicographic order, without duplicates.
func SortLanguages(def Language, others []Language) []Language {
	seen := map[Language]bool{def: true}
	rest := make([]Language, 0, len(others))
	for _, l := range others {
		if seen[l] {
			continue
		}
		seen[l] = true
		rest = append(rest, l)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append([]Language{def}, rest...)
}
