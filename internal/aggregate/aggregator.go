// Package aggregate folds mentions into per-topic aggregates, deduplicating
// by content fingerprint and tracking co-occurrence between topics that
// appear on the same mention.
package aggregate

import (
	"github.com/pulsefeed/trendwatch/internal/alias"
	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/phrase"
)

func hintRank(q domain.LabelQuality) int {
	switch q {
	case domain.LabelEventPhrase:
		return 3
	case domain.LabelFallbackGenerated:
		return 2
	case domain.LabelEntityOnly:
		return 1
	default:
		return 0
	}
}

// Aggregator owns the topic map for the duration of one run.
type Aggregator struct {
	aliases *alias.Resolver
	topics  map[string]*domain.TopicAggregate

	droppedTopics int
}

// New creates an empty aggregator over the given alias resolver.
func New(aliases *alias.Resolver) *Aggregator {
	return &Aggregator{
		aliases: aliases,
		topics:  make(map[string]*domain.TopicAggregate),
	}
}

// Ingest attaches one mention to every topic it carries, then records
// co-occurrence between those topics. Topics that alias to the skip sentinel
// or normalize below two characters are dropped silently.
func (a *Aggregator) Ingest(m domain.Mention) {
	seen := make(map[string]bool, len(m.Topics))
	keys := make([]string, 0, len(m.Topics))

	for _, ref := range m.Topics {
		key, title, ok := a.aliases.Resolve(ref.Raw)
		if !ok {
			a.droppedTopics++
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		agg, exists := a.topics[key]
		if !exists {
			claimed := ref.EventPhraseClaim || phrase.IsEventPhrase(title)
			agg = domain.NewTopicAggregate(key, title, claimed, ref.QualityHint)
			a.topics[key] = agg
		} else {
			if ref.EventPhraseClaim {
				agg.IsEventPhrase = true
			}
			if hintRank(ref.QualityHint) > hintRank(agg.QualityHint) {
				agg.QualityHint = ref.QualityHint
			}
		}

		agg.Observe(m)
		keys = append(keys, key)
	}

	a.trackCoOccurrences(keys)
}

func (a *Aggregator) trackCoOccurrences(keys []string) {
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a.topics[keys[i]].RecordCoOccurrence(keys[j])
			a.topics[keys[j]].RecordCoOccurrence(keys[i])
		}
	}
}

// Topics returns the aggregate map. Callers must treat it as read-only once
// aggregation has finished.
func (a *Aggregator) Topics() map[string]*domain.TopicAggregate {
	return a.topics
}

// DroppedTopics counts topic references dropped by alias skip rules or key
// length.
func (a *Aggregator) DroppedTopics() int { return a.droppedTopics }

// DedupSavings sums raw-minus-deduped across all topics for run telemetry.
func (a *Aggregator) DedupSavings() int {
	saved := 0
	for _, agg := range a.topics {
		saved += agg.RawCount() - agg.DedupedCount()
	}
	return saved
}
