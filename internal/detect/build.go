package detect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/persistence"
	"github.com/pulsefeed/trendwatch/internal/phrase"
	"github.com/pulsefeed/trendwatch/internal/score"
)

// neighborhood summarizes a topic's co-occurrence neighbors, split into event
// phrases and plain entities. Keys feed the related_* columns, titles the
// context_* columns; counts feed the context-sufficiency check uncapped.
type neighborhood struct {
	phraseKeys   []string
	phraseTitles []string
	entityKeys   []string
	entityTitles []string

	phraseCount int
	entityCount int
}

func neighborsOf(agg *domain.TopicAggregate, topics map[string]*domain.TopicAggregate) neighborhood {
	type pair struct {
		key   string
		count int
	}
	ordered := make([]pair, 0, len(agg.CoOccurrences))
	for k, c := range agg.CoOccurrences {
		ordered = append(ordered, pair{key: k, count: c})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].key < ordered[j].key
	})

	var nb neighborhood
	for _, p := range ordered {
		other, ok := topics[p.key]
		if !ok {
			continue
		}
		if other.IsEventPhrase {
			nb.phraseCount++
			if len(nb.phraseKeys) < maxNeighbors {
				nb.phraseKeys = append(nb.phraseKeys, p.key)
				nb.phraseTitles = append(nb.phraseTitles, other.Title)
			}
		} else {
			nb.entityCount++
			if len(nb.entityKeys) < maxNeighbors {
				nb.entityKeys = append(nb.entityKeys, p.key)
				nb.entityTitles = append(nb.entityTitles, other.Title)
			}
		}
	}
	return nb
}

func (nb neighborhood) summary() string {
	total := nb.phraseCount + nb.entityCount
	if total == 0 {
		return ""
	}
	names := append(append([]string{}, nb.phraseTitles...), nb.entityTitles...)
	if len(names) > 3 {
		names = names[:3]
	}
	out := "co-occurs with " + names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	if total > len(names) {
		out += fmt.Sprintf(" and %d more", total-len(names))
	}
	return out
}

// buildEvidence selects the strongest deduplicated mentions as persisted
// evidence: higher tiers first, the first row marked primary, contribution
// equal to the source tier weight.
func buildEvidence(agg *domain.TopicAggregate) []persistence.Evidence {
	ranked := agg.RankedEvidence()
	if len(ranked) > evidencePerEvent {
		ranked = ranked[:evidencePerEvent]
	}

	out := make([]persistence.Evidence, 0, len(ranked))
	for i, m := range ranked {
		ev := persistence.Evidence{
			SourceType:     string(m.Source),
			SourceID:       m.ID,
			SourceURL:      m.URL,
			SourceTitle:    m.Title,
			SourceDomain:   m.Domain,
			PublishedAt:    m.PublishedAt,
			Contribution:   m.Tier.Weight(),
			IsPrimary:      i == 0,
			CanonicalURL:   m.CanonicalURL,
			ContentHash:    domain.HashKey(m.ContentHash),
			SentimentScore: m.SentimentScore,
			SentimentLabel: string(m.SentimentLabel),
			SourceTier:     string(m.Tier),
		}
		if ev.SentimentLabel == "" {
			ev.SentimentLabel = string(domain.SentimentNeutral)
		}
		out = append(out, ev)
	}
	return out
}

func buildEvent(agg *domain.TopicAggregate, val phrase.Validation, labelSource, clusterID string, nb neighborhood, gateExplain string, res score.Result, evidenceCount int, now time.Time) persistence.TrendEvent {
	summary := gateExplain
	if summary == "" {
		summary = nb.summary()
	}

	e := persistence.TrendEvent{
		EventKey:       agg.Key,
		EventTitle:     agg.Title,
		CanonicalLabel: val.Label,
		IsEventPhrase:  val.IsEventPhrase,
		LabelQuality:   string(val.Quality),
		LabelSource:    labelSource,

		RelatedEntities: nb.entityKeys,
		RelatedPhrases:  nb.phraseKeys,
		ContextTerms:    nb.entityTitles,
		ContextPhrases:  nb.phraseTitles,
		ContextSummary:  summary,

		FirstSeenAt: agg.FirstSeen,
		LastSeenAt:  agg.LastSeen,
		PeakAt:      res.PeakAt,

		Baseline7d:  res.Baseline7d,
		Baseline30d: res.Baseline30d,
		Current1h:   res.Current1h,
		Current6h:   res.Current6h,
		Current24h:  res.Current24h,

		Velocity:       res.Velocity,
		Velocity1h:     res.Velocity1h,
		Velocity6h:     res.Velocity6h,
		Acceleration:   res.Acceleration,
		TrendScore:     res.TrendScore,
		ZScoreVelocity: res.ZScore,
		Confidence:     res.Confidence,
		RankScore:      res.RankScore,
		RecencyDecay:   res.RecencyDecay,
		EvergreenMult:  res.EvergreenPenalty,

		ConfidenceFactors: res.Factors,

		IsTrending: res.IsTrending,
		IsBreaking: res.IsBreaking,
		TrendStage: string(res.Stage),

		SourceCount:       agg.DistinctDomains(),
		NewsSourceCount:   agg.NewsDeduped(),
		SocialSourceCount: agg.SocialDeduped(),
		Corroboration:     res.CorroborationScore,
		EvidenceCount:     evidenceCount,
		TopHeadline:       agg.TopHeadline(),
		SentimentScore:    res.SentimentScore,
		SentimentLabel:    string(res.SentimentLabel),

		Tier1Count:       agg.DedupedByTier[domain.Tier1],
		Tier2Count:       agg.DedupedByTier[domain.Tier2],
		Tier3Count:       agg.DedupedByTier[domain.Tier3],
		WeightedEvidence: res.WeightedEvidence,
		HasTier12:        agg.HasTier12(),
		IsTier3Only:      agg.Tier3Only(),

		UpdatedAt: now,
	}

	if clusterID != "" {
		e.ClusterID = &clusterID
	}
	return e
}

// buildBaselineDay rolls one topic's current activity into the daily baseline
// row. Hourly spread comes from the 24-bucket histogram.
func buildBaselineDay(agg *domain.TopicAggregate, now time.Time) persistence.BaselineDay {
	hist := agg.HourlyHistogram(now)

	total := 0
	for _, c := range hist {
		total += c
	}
	mean := float64(total) / 24

	variance := 0.0
	for _, c := range hist {
		diff := float64(c) - mean
		variance += diff * diff
	}
	variance /= 24
	std := math.Sqrt(variance)

	relStd := 0.0
	if mean > 0 {
		relStd = std / mean
	}

	return persistence.BaselineDay{
		EventKey:       agg.Key,
		BaselineDate:   now.UTC().Truncate(24 * time.Hour),
		MentionsCount:  total,
		HourlyAverage:  mean,
		HourlyStdDev:   std,
		RelativeStdDev: relStd,
		NewsMentions:   agg.NewsDeduped(),
		SocialMentions: agg.SocialDeduped(),
	}
}
