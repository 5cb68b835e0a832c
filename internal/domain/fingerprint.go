package domain

import (
	"hash/fnv"
	"net/url"
	"strings"
	"time"
)

// trackingParams are query parameters stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"ref":          true,
	"source":       true,
}

// CanonicalURL normalizes a URL for deduplication: lowercased scheme and
// host, tracking parameters removed, fragment dropped, trailing slash trimmed.
// Unparseable input is returned unchanged.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	out := u.String()
	return strings.TrimSuffix(out, "/")
}

// NormalizeText lowercases and collapses runs of whitespace to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ArticleContentHash fingerprints a news or aggregator mention from its
// normalized title, canonical URL, and publish time truncated to the minute.
// Syndicated copies of the same story collapse to one hash.
func ArticleContentHash(title, canonicalURL string, publishedAt time.Time) uint64 {
	h := fnv.New64a()
	h.Write([]byte(NormalizeText(title)))
	h.Write([]byte{'|'})
	h.Write([]byte(canonicalURL))
	h.Write([]byte{'|'})
	h.Write([]byte(publishedAt.UTC().Truncate(time.Minute).Format(time.RFC3339)))
	return h.Sum64()
}

// SocialContentHash fingerprints a social post from the first 100 characters
// of its normalized text.
func SocialContentHash(text string) uint64 {
	norm := NormalizeText(text)
	if len(norm) > 100 {
		norm = norm[:100]
	}
	h := fnv.New64a()
	h.Write([]byte(norm))
	return h.Sum64()
}

// HashKey renders a content hash as the fixed-width hex string stored with
// evidence rows.
func HashKey(h uint64) string {
	const hexdigits = "0123456789abcdef"
	var b [16]byte
	for i := 15; i >= 0; i-- {
		b[i] = hexdigits[h&0xf]
		h >>= 4
	}
	return string(b[:])
}
