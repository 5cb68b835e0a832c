package domain

import "time"

// SourceFamily identifies which ingestion stream produced a mention.
type SourceFamily string

const (
	SourceArticle    SourceFamily = "article"
	SourceAggregator SourceFamily = "aggregator"
	SourceSocial     SourceFamily = "social"
)

// IsNews reports whether the family counts as news-type for corroboration.
func (s SourceFamily) IsNews() bool {
	return s == SourceArticle || s == SourceAggregator
}

// Tier is the authority class of a publisher.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// Weight returns the authority weight used for evidence scoring.
func (t Tier) Weight() float64 {
	switch t {
	case Tier1:
		return 1.0
	case Tier2:
		return 0.7
	default:
		return 0.4
	}
}

// SentimentLabel is the discrete sentiment class attached by upstream extraction.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SocialDomain is the fixed publisher domain recorded for social posts.
const SocialDomain = "social"

// TopicRef is one raw topic string attached to a mention, with optional
// hints carried from the upstream extractor.
type TopicRef struct {
	Raw              string
	QualityHint      LabelQuality // empty when the extractor gave no hint
	EventPhraseClaim bool
}

// Mention is a single piece of content observed from one source within the
// detection window. Created by the loaders, read-only afterwards.
type Mention struct {
	ID             string
	Title          string
	Source         SourceFamily
	PublishedAt    time.Time
	Domain         string
	URL            string
	CanonicalURL   string
	Tier           Tier
	SentimentScore *float64
	SentimentLabel SentimentLabel
	Topics         []TopicRef
	ContentHash    uint64
}

// IsNews reports whether the mention came from a news-type source.
func (m *Mention) IsNews() bool { return m.Source.IsNews() }
