// Package tier maps publisher domains to authority tiers. Tier assignments
// come from the persisted source_tiers table layered over built-in defaults;
// social posts are always tier3.
package tier

import (
	"strings"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

// Entry is one persisted tier assignment.
type Entry struct {
	Domain string
	Tier   domain.Tier
}

// builtinTiers seeds well-known publishers so a fresh database still tiers
// the obvious outlets correctly.
var builtinTiers = map[string]domain.Tier{
	"reuters.com":        domain.Tier2,
	"apnews.com":         domain.Tier2,
	"bloomberg.com":      domain.Tier2,
	"nytimes.com":        domain.Tier2,
	"washingtonpost.com": domain.Tier2,
	"wsj.com":            domain.Tier2,
	"bbc.com":            domain.Tier2,
	"bbc.co.uk":          domain.Tier2,
	"cnn.com":            domain.Tier2,
	"nbcnews.com":        domain.Tier2,
	"abcnews.go.com":     domain.Tier2,
	"cbsnews.com":        domain.Tier2,
	"npr.org":            domain.Tier2,
	"politico.com":       domain.Tier2,
	"axios.com":          domain.Tier2,
	"theguardian.com":    domain.Tier2,
	"ft.com":             domain.Tier2,
	"economist.com":      domain.Tier2,
	"usatoday.com":       domain.Tier2,
	"thehill.com":        domain.Tier2,
	"latimes.com":        domain.Tier2,
}

// Resolver answers tier lookups for publisher domains.
type Resolver struct {
	byDomain map[string]domain.Tier
}

// NewResolver layers persisted tier rows over the built-in defaults.
func NewResolver(rows []Entry) *Resolver {
	m := make(map[string]domain.Tier, len(builtinTiers)+len(rows))
	for d, t := range builtinTiers {
		m[d] = t
	}
	for _, row := range rows {
		d := normalizeDomain(row.Domain)
		if d == "" {
			continue
		}
		switch row.Tier {
		case domain.Tier1, domain.Tier2, domain.Tier3:
			m[d] = row.Tier
		}
	}
	return &Resolver{byDomain: m}
}

// ForMention resolves the tier for a mention's source. Social posts are
// pinned at tier3 no matter what the table says.
func (r *Resolver) ForMention(src domain.SourceFamily, publisherDomain string) domain.Tier {
	if src == domain.SourceSocial {
		return domain.Tier3
	}
	return r.ForDomain(publisherDomain)
}

// ForDomain resolves a publisher domain, walking up subdomains so
// edition.cnn.com matches cnn.com. Government and military domains default
// to tier1; everything unknown is tier3.
func (r *Resolver) ForDomain(publisherDomain string) domain.Tier {
	d := normalizeDomain(publisherDomain)
	if d == "" {
		return domain.Tier3
	}

	for probe := d; probe != ""; probe = parentDomain(probe) {
		if t, ok := r.byDomain[probe]; ok {
			return t
		}
	}

	if strings.HasSuffix(d, ".gov") || strings.HasSuffix(d, ".mil") {
		return domain.Tier1
	}
	return domain.Tier3
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

func parentDomain(d string) string {
	i := strings.IndexByte(d, '.')
	if i < 0 {
		return ""
	}
	parent := d[i+1:]
	if !strings.Contains(parent, ".") {
		// bare TLD, stop walking
		return ""
	}
	return parent
}
