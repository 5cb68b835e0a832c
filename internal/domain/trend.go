package domain

// LabelQuality classifies how a display label was obtained and how much it
// can be trusted as an event description.
type LabelQuality string

const (
	LabelEventPhrase       LabelQuality = "event_phrase"
	LabelFallbackGenerated LabelQuality = "fallback_generated"
	LabelEntityOnly        LabelQuality = "entity_only"
)

// Label sources recorded alongside label quality for explainability.
const (
	LabelSourceExtractor = "extractor"
	LabelSourceHeadline  = "headline_fallback"
	LabelSourceCluster   = "cluster_canonical"
)

// TrendStage is the lifecycle phase assigned by the scorer.
type TrendStage string

const (
	StageEmerging  TrendStage = "emerging"
	StageSurging   TrendStage = "surging"
	StagePeaking   TrendStage = "peaking"
	StageDeclining TrendStage = "declining"
	StageStable    TrendStage = "stable"
)

// BreakingPath names the first matching rule that labeled a trend breaking.
type BreakingPath string

const (
	PathFreshSpike        BreakingPath = "fresh_spike"
	PathExtremeZScore     BreakingPath = "extreme_zscore"
	PathHighRankFresh     BreakingPath = "high_rank_fresh"
	PathBaselineSurge     BreakingPath = "baseline_surge"
	PathHighCorroboration BreakingPath = "high_corroboration"
	PathExtremeActivity   BreakingPath = "extreme_activity"
)

// BreakingCriteria records the breaking evaluation for explainability; it is
// persisted inside confidence_factors.
type BreakingCriteria struct {
	BreakingPath       string `json:"breaking_path,omitempty"`
	HasTier12          bool   `json:"has_tier12"`
	VolumeGate         bool   `json:"volume_gate"`
	EffectiveCurrent1h int    `json:"effective_current_1h"`
}

// ConfidenceFactors is the structured explainability blob persisted with
// every trend event. Every scoring component appears here so a reader can
// reconstruct the rank score by hand.
type ConfidenceFactors struct {
	ZScore                 float64          `json:"z_score"`
	BaselineQuality        float64          `json:"baseline_quality"`
	HasHistoricalBaseline  bool             `json:"has_historical_baseline"`
	Baseline7d             float64          `json:"baseline_7d"`
	Baseline30d            float64          `json:"baseline_30d"`
	VelocityComponent      float64          `json:"velocity_component"`
	CorroborationComponent float64          `json:"corroboration_component"`
	ActivityComponent      float64          `json:"activity_component"`
	RecencyDecay           float64          `json:"recency_decay"`
	EvergreenPenalty       float64          `json:"evergreen_penalty"`
	IsEvergreen            bool             `json:"is_evergreen"`
	LabelQualityModifier   float64          `json:"label_quality_modifier"`
	ContextPenalty         float64          `json:"context_penalty"`
	ContextSufficient      bool             `json:"context_sufficient"`
	VolumeGate             bool             `json:"volume_gate"`
	CorroborationScore     int              `json:"corroboration_score"`
	BreakingCriteria       BreakingCriteria `json:"breaking_criteria"`
}

// SentimentLabelFor maps a mean sentiment score onto the discrete label
// persisted with trend events.
func SentimentLabelFor(score float64) SentimentLabel {
	switch {
	case score >= 0.15:
		return SentimentPositive
	case score <= -0.15:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
