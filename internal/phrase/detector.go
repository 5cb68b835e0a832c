// Package phrase decides whether topic labels describe events and, when they
// do not, tries to synthesize an event phrase from a representative headline.
package phrase

import (
	"regexp"
	"strings"
)

// Event phrases are 2..6 words containing an action verb or event noun.
const (
	minPhraseWords = 2
	maxPhraseWords = 6
)

var entityPatterns = []*regexp.Regexp{
	// single capitalized word
	regexp.MustCompile(`^[A-Z][a-z]+$`),
	// First Last
	regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+$`),
	// honorific followed by a name
	regexp.MustCompile(`^(?:President|Vice President|Senator|Sen\.?|Representative|Rep\.?|Governor|Gov\.?|Secretary|Justice|Judge|Mayor|Chancellor|Prime Minister|General|Gen\.?|Adm\.?|Dr\.?|Mr\.?|Mrs\.?|Ms\.?|King|Queen|Pope|Speaker|Ambassador|Director)(?: [A-Z][a-z]+)+$`),
	// 2-5 letter all-caps acronym
	regexp.MustCompile(`^[A-Z]{2,5}$`),
	// "The X" or "The X Y"
	regexp.MustCompile(`^The [A-Z][a-z]+(?: [A-Z][a-z]+)?$`),
}

// IsEventPhrase reports whether a label is a 2-6 word phrase carrying an
// action verb or event noun.
func IsEventPhrase(label string) bool {
	words := strings.Fields(label)
	if len(words) < minPhraseWords || len(words) > maxPhraseWords {
		return false
	}
	if !hasEventWord(words) {
		return false
	}
	return true
}

// LooksLikeEntity reports whether a label matches one of the entity-only
// shapes: lone capitalized word, a two-word name, honorific plus name, a
// short acronym, or a "The X" construction without any event word.
func LooksLikeEntity(label string) bool {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return false
	}
	if hasEventWord(strings.Fields(trimmed)) {
		return false
	}
	for _, p := range entityPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func hasEventWord(words []string) bool {
	for _, w := range words {
		t := normalizeToken(w)
		if actionVerbs[t] || eventNouns[t] {
			return true
		}
	}
	return false
}

func normalizeToken(w string) string {
	return strings.Trim(strings.ToLower(w), ".,;:!?\"'()[]")
}
