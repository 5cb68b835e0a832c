// Package score turns topic aggregates into ranked trend results: z-score
// velocity against rolling baselines, composite rank with evergreen, recency,
// label-quality, and context modifiers, trend stage, and breaking paths.
package score

import (
	"math"
	"strings"
	"time"

	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/phrase"
)

// ContextInfo summarizes a topic's co-occurrence neighborhood. Entity-only
// labels need context before they may trend.
type ContextInfo struct {
	PhraseNeighbors int
	EntityNeighbors int
}

// Sufficient reports whether an entity-only label has enough co-occurring
// context: two non-phrase neighbors or one event-phrase neighbor.
func (c ContextInfo) Sufficient() bool {
	return c.PhraseNeighbors >= 1 || c.EntityNeighbors >= 2
}

// Result carries every scoring output for one topic.
type Result struct {
	Key string

	Current1h  int
	Current6h  int
	Current24h int

	Baseline7d  float64
	Baseline30d float64
	HasHistory  bool

	ZScore       float64
	Velocity     float64
	Velocity1h   float64
	Velocity6h   float64
	Acceleration float64

	RankScore  float64
	TrendScore float64
	Confidence int

	RecencyDecay      float64
	EvergreenPenalty  float64
	IsEvergreen       bool
	ContextSufficient bool
	VolumeGate        bool

	IsTrending   bool
	IsBreaking   bool
	BreakingPath domain.BreakingPath
	Stage        domain.TrendStage
	PeakAt       *time.Time

	CorroborationScore int
	WeightedEvidence   float64

	SentimentScore *float64
	SentimentLabel domain.SentimentLabel

	Factors domain.ConfidenceFactors
}

// Scorer evaluates aggregates against a fixed reference time so a run is
// internally consistent.
type Scorer struct {
	now time.Time
}

// NewScorer creates a scorer anchored at now.
func NewScorer(now time.Time) *Scorer {
	return &Scorer{now: now}
}

// Score computes the full result for one topic. val is the post-validation
// (and post-cluster-override) label; ctxInfo describes the co-occurrence
// neighborhood.
func (s *Scorer) Score(agg *domain.TopicAggregate, bl domain.RollingBaseline, val phrase.Validation, ctxInfo ContextInfo) Result {
	c1h, c6h, c24h := agg.WindowCounts(s.now)
	quality := bl.Quality()

	z := zScore(c1h, bl)
	velocity := velocityPct(float64(c1h), bl.Baseline7d)
	velocity6h := velocityPct(float64(c6h)/6, bl.Baseline7d)
	acc := accelerationPct(c1h, c6h)

	age := agg.AgeSince(s.now)
	fresh := agg.HoursSinceLastSeen(s.now)
	rd := recencyDecay(fresh)

	singleWord := len(strings.Fields(agg.Title)) <= 1
	entityOnly := val.Quality == domain.LabelEntityOnly
	evergreen := isEvergreen(agg.Key, bl, singleWord)
	ep := evergreenPenalty(evergreen, singleWord && entityOnly, bl.HasHistory(), z)
	// legacy score damps on evergreen alone; the single-word entity base
	// penalty is a rank-score concept
	epLegacy := evergreenPenalty(evergreen, false, bl.HasHistory(), z)

	contextSufficient := !entityOnly || ctxInfo.Sufficient()
	lq := labelQualityModifier(val.Quality, agg.HasTier12())
	cp := 1.0
	if entityOnly && !contextSufficient {
		cp = 0.35
	}

	families := agg.SourceFamilies()
	newsAndSocial := agg.NewsDeduped() > 0 && agg.SocialDeduped() > 0

	velComp := math.Min(50, math.Max(0, z*5)) * quality
	corrComp := corroborationComponent(families, newsAndSocial, agg.HasTier12())
	actComp := math.Min(20, 4*log2i(c1h)+2*log2i(c24h))

	rank := round1((velComp + corrComp + actComp) * rd * ep * lq * cp)

	volumeGate := c1h >= 2 || c24h >= 5 || families >= 2
	trend := legacyTrendScore(z, quality, epLegacy, families, newsAndSocial, c24h, agg, volumeGate)

	isTrending := trend >= 20 && volumeGate && contextSufficient

	stage, peakAt := stageFor(z, acc, age, agg.LastSeen)

	corrScore := agg.DistinctDomains()
	if newsAndSocial {
		corrScore += 2
	}
	if agg.HasTier12() {
		corrScore += 2
	}

	eff1h := effectiveCurrent1h(c1h, c6h, agg.DistinctDomains(), agg.NewsDeduped(), fresh)
	path, matched := breakingPath(breakingInput{
		z:          z,
		rank:       rank,
		age:        age,
		news:       agg.NewsDeduped(),
		sources:    agg.DistinctDomains(),
		hasHistory: bl.HasHistory(),
		delta:      float64(c1h) - bl.Baseline7d,
		corrScore:  corrScore,
		eff1h:      eff1h,
		tier12:     agg.HasTier12(),
		volumeGate: volumeGate,
	})
	isBreaking := matched && isTrending

	res := Result{
		Key:               agg.Key,
		Current1h:         c1h,
		Current6h:         c6h,
		Current24h:        c24h,
		Baseline7d:        round3(bl.Baseline7d),
		Baseline30d:       round3(bl.Baseline30d),
		HasHistory:        bl.HasHistory(),
		ZScore:            round3(z),
		Velocity:          round1(velocity),
		Velocity1h:        round1(velocity),
		Velocity6h:        round1(velocity6h),
		Acceleration:      round1(acc),
		RankScore:         rank,
		TrendScore:        trend,
		Confidence:        confidenceScore(quality, families, agg.HasTier12(), agg.DedupedCount()),
		RecencyDecay:      round3(rd),
		EvergreenPenalty:  round3(ep),
		IsEvergreen:       evergreen,
		ContextSufficient: contextSufficient,
		VolumeGate:        volumeGate,
		IsTrending:        isTrending,
		IsBreaking:        isBreaking,
		BreakingPath:      path,
		Stage:             stage,
		PeakAt:            peakAt,
		CorroborationScore: corrScore,
		WeightedEvidence:   round1(agg.Authority),
	}

	if avg, ok := agg.AvgSentiment(); ok {
		v := round3(avg)
		res.SentimentScore = &v
		res.SentimentLabel = domain.SentimentLabelFor(avg)
	} else {
		res.SentimentLabel = domain.SentimentNeutral
	}

	res.Factors = domain.ConfidenceFactors{
		ZScore:                 round3(z),
		BaselineQuality:        quality,
		HasHistoricalBaseline:  bl.HasHistory(),
		Baseline7d:             round3(bl.Baseline7d),
		Baseline30d:            round3(bl.Baseline30d),
		VelocityComponent:      round3(velComp),
		CorroborationComponent: corrComp,
		ActivityComponent:      round3(actComp),
		RecencyDecay:           round3(rd),
		EvergreenPenalty:       round3(ep),
		IsEvergreen:            evergreen,
		LabelQualityModifier:   lq,
		ContextPenalty:         cp,
		ContextSufficient:      contextSufficient,
		VolumeGate:             volumeGate,
		CorroborationScore:     corrScore,
		BreakingCriteria: domain.BreakingCriteria{
			BreakingPath:       string(path),
			HasTier12:          agg.HasTier12(),
			VolumeGate:         volumeGate,
			EffectiveCurrent1h: eff1h,
		},
	}

	return res
}

func corroborationComponent(families int, newsAndSocial, tier12 bool) float64 {
	c := 0.0
	switch {
	case families >= 3:
		c = 25
	case families >= 2:
		c = 15
	}
	if newsAndSocial {
		c += 10
	}
	if tier12 {
		c += 5
	}
	return math.Min(c, 30)
}

// legacyTrendScore is the original composite kept for downstream readers
// that have not migrated to rank_score. The evergreen penalty multiplies the
// whole sum; without it, volume and tier bonuses alone would push every
// evergreen topic past the trending threshold.
func legacyTrendScore(z, quality, evergreenPenalty float64, families int, newsAndSocial bool, c24h int, agg *domain.TopicAggregate, volumeGate bool) float64 {
	if !volumeGate {
		return 0
	}

	velocityScore := z * 10 * quality

	corrBoost := 0.0
	if families >= 2 {
		corrBoost = 15
		if newsAndSocial {
			corrBoost += 15
		}
	}

	volumeBonus := math.Min(20, 5*log2i(c24h))

	tierBoost := 0.0
	switch {
	case agg.DedupedByTier[domain.Tier1] > 0:
		tierBoost = 20
	case agg.DedupedByTier[domain.Tier2] > 0:
		tierBoost = 12
	}

	tierPenalty := 1.0
	if agg.Tier3Only() {
		tierPenalty = 0.5
	}

	total := (velocityScore + corrBoost + volumeBonus + tierBoost) * tierPenalty * evergreenPenalty
	return round1(math.Max(0, total))
}

func labelQualityModifier(q domain.LabelQuality, tier12 bool) float64 {
	switch q {
	case domain.LabelEventPhrase:
		return 1.0
	case domain.LabelFallbackGenerated:
		return 0.85
	default:
		if tier12 {
			return 0.6
		}
		return 0.4
	}
}

func stageFor(z, acc, age float64, lastSeen time.Time) (domain.TrendStage, *time.Time) {
	switch {
	case z > 3 && acc > 50 && age < 3:
		return domain.StageEmerging, nil
	case z > 2 && acc > 20:
		return domain.StageSurging, nil
	case z > 1.5 && acc < -20:
		peak := lastSeen
		return domain.StagePeaking, &peak
	case z < 0 || (z < 0.5 && acc < -30):
		return domain.StageDeclining, nil
	case z > 0.5:
		return domain.StageSurging, nil
	default:
		return domain.StageStable, nil
	}
}

type breakingInput struct {
	z          float64
	rank       float64
	age        float64
	news       int
	sources    int
	hasHistory bool
	delta      float64
	corrScore  int
	eff1h      int
	tier12     bool
	volumeGate bool
}

// breakingPath walks the ordered criteria; the first match names the path.
// Tier1/2 corroboration and the volume gate are hard preconditions.
func breakingPath(in breakingInput) (domain.BreakingPath, bool) {
	if !in.tier12 || !in.volumeGate {
		return "", false
	}
	switch {
	case in.z > 3 && in.news >= 1 && in.age < 8:
		return domain.PathFreshSpike, true
	case in.z >= 4 && in.news >= 1 && in.age < 24:
		return domain.PathExtremeZScore, true
	case in.rank >= 60 && in.z > 2 && in.age < 4:
		return domain.PathHighRankFresh, true
	case in.hasHistory && in.delta > 4 && in.sources >= 2 && in.age < 12:
		return domain.PathBaselineSurge, true
	case in.corrScore >= 6 && in.eff1h >= 5 && in.age < 6:
		return domain.PathHighCorroboration, true
	case in.eff1h >= 8 && in.news >= 2 && in.age < 3:
		return domain.PathExtremeActivity, true
	}
	return "", false
}

// effectiveCurrent1h substitutes proxies when the 1h bucket is empty but
// recent corroborated activity exists, so clock skew cannot hide a burst.
// fresh is hours since the newest mention; a long-running story with current
// coverage must still qualify, so the guards never consult first-seen age.
func effectiveCurrent1h(c1h, c6h, sources, news int, fresh float64) int {
	if c1h > 0 {
		return c1h
	}
	if c6h >= 5 && sources >= 2 && fresh < 4 {
		return (c6h + 1) / 2
	}
	if sources >= 3 && fresh < 2 {
		proxy := sources + news
		if proxy > 5 {
			proxy = 5
		}
		return proxy
	}
	return 0
}

func confidenceScore(quality float64, families int, tier12 bool, deduped int) int {
	score := 40*quality + 20*math.Min(1, float64(families)/3)
	if tier12 {
		score += 20
	}
	score += 20 * math.Min(1, float64(deduped)/10)
	return int(math.Round(score))
}

func log2i(n int) float64 {
	return math.Log2(float64(n) + 1)
}
