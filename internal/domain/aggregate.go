package domain

import (
	"sort"
	"time"
)

// TopicAggregate accumulates everything observed about one canonical topic
// key during a detection run. It is mutated only by the aggregation phase
// and read-only during scoring.
type TopicAggregate struct {
	Key           string
	Title         string
	IsEventPhrase bool
	QualityHint   LabelQuality // strongest upstream hint seen, empty if none

	RelatedEntities map[string]bool
	CoOccurrences   map[string]int

	Mentions []Mention
	Deduped  map[uint64]Mention

	FirstSeen time.Time
	LastSeen  time.Time

	RawBySource     map[SourceFamily]int
	DedupedBySource map[SourceFamily]int
	DedupedByTier   map[Tier]int

	SentimentSum   float64
	SentimentCount int

	Authority float64
}

// NewTopicAggregate creates an empty aggregate for a canonical key.
func NewTopicAggregate(key, title string, isEventPhrase bool, hint LabelQuality) *TopicAggregate {
	return &TopicAggregate{
		Key:             key,
		Title:           title,
		IsEventPhrase:   isEventPhrase,
		QualityHint:     hint,
		RelatedEntities: make(map[string]bool),
		CoOccurrences:   make(map[string]int),
		Deduped:         make(map[uint64]Mention),
		RawBySource:     make(map[SourceFamily]int),
		DedupedBySource: make(map[SourceFamily]int),
		DedupedByTier:   make(map[Tier]int),
	}
}

// Observe folds one mention into the aggregate. Raw counts always increase;
// deduplicated counts, tier counts, and authority only increase the first
// time a content hash is seen.
func (a *TopicAggregate) Observe(m Mention) {
	a.Mentions = append(a.Mentions, m)
	a.RawBySource[m.Source]++

	if _, seen := a.Deduped[m.ContentHash]; !seen {
		a.Deduped[m.ContentHash] = m
		a.DedupedBySource[m.Source]++
		tier := m.Tier
		if tier != Tier1 && tier != Tier2 {
			tier = Tier3
		}
		a.DedupedByTier[tier]++
		a.Authority += tier.Weight()
	}

	if !m.PublishedAt.IsZero() {
		if a.FirstSeen.IsZero() || m.PublishedAt.Before(a.FirstSeen) {
			a.FirstSeen = m.PublishedAt
		}
		if m.PublishedAt.After(a.LastSeen) {
			a.LastSeen = m.PublishedAt
		}
	}

	if m.SentimentScore != nil {
		a.SentimentSum += *m.SentimentScore
		a.SentimentCount++
	}
}

// RecordCoOccurrence notes that otherKey appeared on the same mention.
func (a *TopicAggregate) RecordCoOccurrence(otherKey string) {
	a.CoOccurrences[otherKey]++
	a.RelatedEntities[otherKey] = true
}

// RawCount returns the number of raw mentions observed.
func (a *TopicAggregate) RawCount() int { return len(a.Mentions) }

// DedupedCount returns the number of distinct content fingerprints observed.
func (a *TopicAggregate) DedupedCount() int { return len(a.Deduped) }

// SourceFamilies returns how many source families contributed at least one
// deduplicated mention.
func (a *TopicAggregate) SourceFamilies() int {
	n := 0
	for _, c := range a.DedupedBySource {
		if c > 0 {
			n++
		}
	}
	return n
}

// NewsDeduped returns deduplicated mentions from news-type sources.
func (a *TopicAggregate) NewsDeduped() int {
	return a.DedupedBySource[SourceArticle] + a.DedupedBySource[SourceAggregator]
}

// SocialDeduped returns deduplicated mentions from social sources.
func (a *TopicAggregate) SocialDeduped() int {
	return a.DedupedBySource[SourceSocial]
}

// DistinctDomains counts distinct publisher domains across deduplicated
// mentions. Social posts all share the fixed social domain.
func (a *TopicAggregate) DistinctDomains() int {
	domains := make(map[string]bool, len(a.Deduped))
	for _, m := range a.Deduped {
		if m.Domain != "" {
			domains[m.Domain] = true
		}
	}
	return len(domains)
}

// HasTier12 reports whether any tier1 or tier2 source corroborates the topic.
func (a *TopicAggregate) HasTier12() bool {
	return a.DedupedByTier[Tier1] > 0 || a.DedupedByTier[Tier2] > 0
}

// Tier3Only reports whether every deduplicated mention is tier3.
func (a *TopicAggregate) Tier3Only() bool {
	return !a.HasTier12() && a.DedupedByTier[Tier3] > 0
}

// WindowCounts returns deduplicated mention counts in the trailing 1h, 6h,
// and 24h windows ending at now.
func (a *TopicAggregate) WindowCounts(now time.Time) (c1h, c6h, c24h int) {
	for _, m := range a.Deduped {
		age := now.Sub(m.PublishedAt)
		if age < 0 {
			age = 0
		}
		switch {
		case age <= time.Hour:
			c1h++
			c6h++
			c24h++
		case age <= 6*time.Hour:
			c6h++
			c24h++
		case age <= 24*time.Hour:
			c24h++
		}
	}
	return c1h, c6h, c24h
}

// HourlyHistogram buckets deduplicated mentions by whole hours before now,
// bucket 0 being the most recent hour. Mentions older than 24h are dropped.
func (a *TopicAggregate) HourlyHistogram(now time.Time) [24]int {
	var hist [24]int
	for _, m := range a.Deduped {
		age := now.Sub(m.PublishedAt)
		if age < 0 {
			age = 0
		}
		bucket := int(age / time.Hour)
		if bucket >= 0 && bucket < 24 {
			hist[bucket]++
		}
	}
	return hist
}

// AvgSentiment returns the mean sentiment across mentions that carried a
// score, and whether any did.
func (a *TopicAggregate) AvgSentiment() (float64, bool) {
	if a.SentimentCount == 0 {
		return 0, false
	}
	return a.SentimentSum / float64(a.SentimentCount), true
}

// AgeSince returns hours elapsed between first sighting and now.
func (a *TopicAggregate) AgeSince(now time.Time) float64 {
	if a.FirstSeen.IsZero() {
		return 0
	}
	h := now.Sub(a.FirstSeen).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// HoursSinceLastSeen returns hours elapsed since the newest mention.
func (a *TopicAggregate) HoursSinceLastSeen(now time.Time) float64 {
	if a.LastSeen.IsZero() {
		return 0
	}
	h := now.Sub(a.LastSeen).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// RankedEvidence returns deduplicated mentions ordered for evidence
// persistence: higher tiers first, newer first within a tier.
func (a *TopicAggregate) RankedEvidence() []Mention {
	out := make([]Mention, 0, len(a.Deduped))
	for _, m := range a.Deduped {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].Tier.Weight(), out[j].Tier.Weight()
		if wi != wj {
			return wi > wj
		}
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TopHeadline returns the title of the highest-ranked news mention, falling
// back to any mention when no news source is present.
func (a *TopicAggregate) TopHeadline() string {
	ranked := a.RankedEvidence()
	for _, m := range ranked {
		if m.IsNews() && m.Title != "" {
			return m.Title
		}
	}
	if len(ranked) > 0 {
		return ranked[0].Title
	}
	return ""
}
