package phrase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

// Validation is the outcome of label validation for one topic.
type Validation struct {
	Label         string
	Quality       domain.LabelQuality
	Source        string
	IsEventPhrase bool
	Downgraded    bool
	Upgraded      bool
}

// ValidateLabel enforces the event-phrase contract on a topic label.
// claimed is the upstream assertion that the label is an event phrase; hint
// is the extractor's label quality if it provided one. headline is the top
// headline used for fallback generation.
func ValidateLabel(title string, claimed bool, hint domain.LabelQuality, headline string) Validation {
	switch hint {
	case domain.LabelFallbackGenerated:
		if claimed && IsEventPhrase(title) {
			return Validation{Label: title, Quality: domain.LabelFallbackGenerated, Source: domain.LabelSourceExtractor, IsEventPhrase: true}
		}
		return Validation{Label: title, Quality: domain.LabelEntityOnly, Source: domain.LabelSourceExtractor, Downgraded: true}

	case domain.LabelEventPhrase:
		if IsEventPhrase(title) {
			return Validation{Label: title, Quality: domain.LabelEventPhrase, Source: domain.LabelSourceExtractor, IsEventPhrase: true}
		}
		return Validation{Label: title, Quality: domain.LabelEntityOnly, Source: domain.LabelSourceExtractor, Downgraded: true}
	}

	if claimed {
		if IsEventPhrase(title) {
			return Validation{Label: title, Quality: domain.LabelEventPhrase, Source: domain.LabelSourceExtractor, IsEventPhrase: true}
		}
		if fb, ok := FallbackFromHeadline(headline, title); ok {
			return Validation{Label: fb, Quality: domain.LabelFallbackGenerated, Source: domain.LabelSourceHeadline, IsEventPhrase: IsEventPhrase(fb), Downgraded: true}
		}
		return Validation{Label: title, Quality: domain.LabelEntityOnly, Source: domain.LabelSourceExtractor, Downgraded: true}
	}

	if fb, ok := FallbackFromHeadline(headline, title); ok {
		return Validation{Label: fb, Quality: domain.LabelFallbackGenerated, Source: domain.LabelSourceHeadline, IsEventPhrase: IsEventPhrase(fb), Upgraded: true}
	}
	return Validation{Label: title, Quality: domain.LabelEntityOnly, Source: domain.LabelSourceExtractor}
}

// Fallback patterns are compiled once from the word lists. Ordered: subject
// verb object, then a leading verb, then an event-noun cue.
var (
	verbAlt = alternation(actionVerbs)
	nounAlt = alternation(eventNouns)

	svoPattern     = regexp.MustCompile(`\b[A-Z][\w.'-]*(?: [A-Z][\w.'-]*)? (?i:` + verbAlt + `)\b(?: [\w'-]+){0,2}`)
	verbLedPattern = regexp.MustCompile(`(?i)\b(?:` + verbAlt + `)\b(?: [\w'-]+){1,3}`)
	nounCuePattern = regexp.MustCompile(`(?i)\b(?:[\w'-]+ ){0,2}\b(?:` + nounAlt + `)\b(?: [\w'-]+){0,2}`)

	headlineSeparators = strings.NewReplacer(":", " ", "|", " ", " - ", " ", "—", " ", "–", " ")
)

// FallbackFromHeadline derives a 3-5 word event phrase from a headline,
// returning false when nothing valid can be extracted. The last resort takes
// the leading non-trivial words when the headline names the entity.
func FallbackFromHeadline(headline, entityTitle string) (string, bool) {
	h := strings.Join(strings.Fields(headlineSeparators.Replace(headline)), " ")
	if h == "" {
		return "", false
	}

	for _, p := range []*regexp.Regexp{svoPattern, verbLedPattern, nounCuePattern} {
		m := p.FindString(h)
		if m == "" {
			continue
		}
		candidate := cleanCandidate(m, 5)
		if len(strings.Fields(candidate)) >= 3 && IsEventPhrase(candidate) {
			return candidate, true
		}
	}

	if entityTitle != "" && strings.Contains(strings.ToLower(h), strings.ToLower(entityTitle)) {
		words := leadingContentWords(h, 5)
		if len(words) >= 3 {
			return strings.Join(words, " "), true
		}
	}
	return "", false
}

func cleanCandidate(s string, maxWords int) string {
	fields := strings.Fields(s)
	out := make([]string, 0, maxWords)
	for _, f := range fields {
		w := strings.Trim(f, ".,;:!?\"'()[]")
		if w == "" {
			continue
		}
		out = append(out, w)
		if len(out) == maxWords {
			break
		}
	}
	return strings.Join(out, " ")
}

func leadingContentWords(s string, max int) []string {
	out := make([]string, 0, max)
	for _, f := range strings.Fields(s) {
		w := strings.Trim(f, ".,;:!?\"'()[]")
		if w == "" || fillerWords[strings.ToLower(w)] {
			continue
		}
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}

func alternation(set map[string]bool) string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	// longest first so the regex engine prefers full inflections
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return strings.Join(words, "|")
}
