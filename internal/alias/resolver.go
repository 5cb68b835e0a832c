// Package alias canonicalizes raw topic surface forms. Resolution order is
// the persisted alias table, then a small built-in table, then default
// normalization. A mapping to the skip sentinel drops the topic entirely.
package alias

import (
	"strings"
	"unicode"
)

// Skip is the sentinel canonical key that drops a topic silently.
const Skip = "__SKIP__"

// Entry is one alias mapping, typically loaded from the topic_aliases table.
type Entry struct {
	Alias string
	Key   string
	Title string
}

type target struct {
	key   string
	title string
	skip  bool
}

// builtinAliases backstops the persisted table for surface forms that show
// up constantly in extraction output.
var builtinAliases = map[string]target{
	"gop":           {key: "republican_party", title: "Republican Party"},
	"dems":          {key: "democratic_party", title: "Democratic Party"},
	"democrats":     {key: "democratic_party", title: "Democratic Party"},
	"republicans":   {key: "republican_party", title: "Republican Party"},
	"potus":         {key: "president_of_the_united_states", title: "President of the United States"},
	"scotus":        {key: "supreme_court", title: "Supreme Court"},
	"doj":           {key: "justice_department", title: "Justice Department"},
	"u.s.":          {key: "united_states", title: "United States"},
	"u.s":           {key: "united_states", title: "United States"},
	"usa":           {key: "united_states", title: "United States"},
	"uk":            {key: "united_kingdom", title: "United Kingdom"},
	"breaking":      {skip: true},
	"breaking news": {skip: true},
	"news":          {skip: true},
	"update":        {skip: true},
	"updates":       {skip: true},
	"live":          {skip: true},
	"watch":         {skip: true},
	"opinion":       {skip: true},
	"analysis":      {skip: true},
}

// protectedAcronyms are single-word canonical keys allowed through the
// single-word quality gate without tier1/tier2 corroboration: unambiguous
// government bodies and designated organizations.
var protectedAcronyms = map[string]bool{
	"fbi":       true,
	"cia":       true,
	"nsa":       true,
	"dhs":       true,
	"ice":       true,
	"irs":       true,
	"epa":       true,
	"cdc":       true,
	"fda":       true,
	"fema":      true,
	"doj":       true,
	"nato":      true,
	"un":        true,
	"isis":      true,
	"hamas":     true,
	"hezbollah": true,
	"taliban":   true,
}

// Resolver maps raw topic strings to canonical keys and titles.
type Resolver struct {
	persisted map[string]target
}

// NewResolver builds a resolver over the persisted alias rows. Rows whose
// canonical key is the skip sentinel become drop rules.
func NewResolver(persisted []Entry) *Resolver {
	m := make(map[string]target, len(persisted))
	for _, e := range persisted {
		lower := strings.ToLower(strings.TrimSpace(e.Alias))
		if lower == "" {
			continue
		}
		if e.Key == Skip {
			m[lower] = target{skip: true}
			continue
		}
		key := e.Key
		if key == "" {
			key = CanonicalKey(e.Title)
		}
		title := e.Title
		if title == "" {
			title = CanonicalTitle(e.Alias)
		}
		m[lower] = target{key: key, title: title}
	}
	return &Resolver{persisted: m}
}

// Resolve canonicalizes one raw topic. ok is false when the topic maps to
// the skip sentinel or normalizes to a key shorter than two characters.
func (r *Resolver) Resolve(raw string) (key, title string, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return "", "", false
	}

	if t, found := r.persisted[lower]; found {
		if t.skip {
			return "", "", false
		}
		return t.key, t.title, true
	}
	if t, found := builtinAliases[lower]; found {
		if t.skip {
			return "", "", false
		}
		return t.key, t.title, true
	}

	key = CanonicalKey(raw)
	if len(key) < 2 {
		return "", "", false
	}
	return key, CanonicalTitle(raw), true
}

// IsProtectedAcronym reports whether a single-word canonical key may pass
// the single-word gate without tier1/tier2 corroboration.
func (r *Resolver) IsProtectedAcronym(key string) bool {
	return protectedAcronyms[strings.ToLower(key)]
}

// CanonicalKey lowers the input, strips punctuation, and joins the remaining
// words with underscores.
func CanonicalKey(s string) string {
	return strings.Join(cleanWords(s), "_")
}

// CanonicalTitle strips punctuation and title-cases each remaining word.
func CanonicalTitle(s string) string {
	words := cleanWords(s)
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

func cleanWords(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
