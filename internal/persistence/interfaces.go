// Package persistence defines the row types and repository interfaces the
// detector reads from and writes to. Implementations live in the postgres
// subpackage.
package persistence

import (
	"context"
	"time"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

// TrendEvent is one persisted trend_events row, upserted by event key on
// every run.
type TrendEvent struct {
	ID             int64  `json:"id" db:"id"`
	EventKey       string `json:"event_key" db:"event_key"`
	EventTitle     string `json:"event_title" db:"event_title"`
	CanonicalLabel string `json:"canonical_label" db:"canonical_label"`
	IsEventPhrase  bool   `json:"is_event_phrase" db:"is_event_phrase"`
	LabelQuality   string `json:"label_quality" db:"label_quality"`
	LabelSource    string `json:"label_source" db:"label_source"`

	RelatedEntities []string `json:"related_entities" db:"related_entities"`
	RelatedPhrases  []string `json:"related_phrases" db:"related_phrases"`
	ContextTerms    []string `json:"context_terms" db:"context_terms"`
	ContextPhrases  []string `json:"context_phrases" db:"context_phrases"`
	ContextSummary  string   `json:"context_summary" db:"context_summary"`
	ClusterID       *string  `json:"cluster_id,omitempty" db:"cluster_id"`

	FirstSeenAt time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at" db:"last_seen_at"`
	PeakAt      *time.Time `json:"peak_at,omitempty" db:"peak_at"`

	Baseline7d  float64 `json:"baseline_7d" db:"baseline_7d"`
	Baseline30d float64 `json:"baseline_30d" db:"baseline_30d"`
	Current1h   int     `json:"current_1h" db:"current_1h"`
	Current6h   int     `json:"current_6h" db:"current_6h"`
	Current24h  int     `json:"current_24h" db:"current_24h"`

	Velocity       float64 `json:"velocity" db:"velocity"`
	Velocity1h     float64 `json:"velocity_1h" db:"velocity_1h"`
	Velocity6h     float64 `json:"velocity_6h" db:"velocity_6h"`
	Acceleration   float64 `json:"acceleration" db:"acceleration"`
	TrendScore     float64 `json:"trend_score" db:"trend_score"`
	ZScoreVelocity float64 `json:"z_score_velocity" db:"z_score_velocity"`
	Confidence     int     `json:"confidence_score" db:"confidence_score"`
	RankScore      float64 `json:"rank_score" db:"rank_score"`
	RecencyDecay   float64 `json:"recency_decay" db:"recency_decay"`
	EvergreenMult  float64 `json:"evergreen_penalty" db:"evergreen_penalty"`

	ConfidenceFactors domain.ConfidenceFactors `json:"confidence_factors" db:"confidence_factors"`

	IsTrending bool   `json:"is_trending" db:"is_trending"`
	IsBreaking bool   `json:"is_breaking" db:"is_breaking"`
	TrendStage string `json:"trend_stage" db:"trend_stage"`

	SourceCount       int      `json:"source_count" db:"source_count"`
	NewsSourceCount   int      `json:"news_source_count" db:"news_source_count"`
	SocialSourceCount int      `json:"social_source_count" db:"social_source_count"`
	Corroboration     int      `json:"corroboration_score" db:"corroboration_score"`
	EvidenceCount     int      `json:"evidence_count" db:"evidence_count"`
	TopHeadline       string   `json:"top_headline" db:"top_headline"`
	SentimentScore    *float64 `json:"sentiment_score,omitempty" db:"sentiment_score"`
	SentimentLabel    string   `json:"sentiment_label" db:"sentiment_label"`

	Tier1Count       int     `json:"tier1_count" db:"tier1_count"`
	Tier2Count       int     `json:"tier2_count" db:"tier2_count"`
	Tier3Count       int     `json:"tier3_count" db:"tier3_count"`
	WeightedEvidence float64 `json:"weighted_evidence_score" db:"weighted_evidence_score"`
	HasTier12        bool    `json:"has_tier12_corroboration" db:"has_tier12_corroboration"`
	IsTier3Only      bool    `json:"is_tier3_only" db:"is_tier3_only"`

	// Embedding of the canonical label, carried so the next run's clusterer
	// can index it. Nullable; the detector never computes embeddings itself.
	Embedding []float64 `json:"embedding,omitempty" db:"embedding"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Evidence is one trend_evidence row pointing at a deduplicated mention.
type Evidence struct {
	EventID        int64     `json:"event_id" db:"event_id"`
	SourceType     string    `json:"source_type" db:"source_type"`
	SourceID       string    `json:"source_id" db:"source_id"`
	SourceURL      string    `json:"source_url" db:"source_url"`
	SourceTitle    string    `json:"source_title" db:"source_title"`
	SourceDomain   string    `json:"source_domain" db:"source_domain"`
	PublishedAt    time.Time `json:"published_at" db:"published_at"`
	Contribution   float64   `json:"contribution_score" db:"contribution_score"`
	IsPrimary      bool      `json:"is_primary" db:"is_primary"`
	CanonicalURL   string    `json:"canonical_url" db:"canonical_url"`
	ContentHash    string    `json:"content_hash" db:"content_hash"`
	SentimentScore *float64  `json:"sentiment_score,omitempty" db:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label" db:"sentiment_label"`
	SourceTier     string    `json:"source_tier" db:"source_tier"`
}

// PhraseCluster is one trend_phrase_clusters row, upserted on the canonical
// phrase.
type PhraseCluster struct {
	CanonicalPhrase     string    `json:"canonical_phrase" db:"canonical_phrase"`
	MemberPhrases       []string  `json:"member_phrases" db:"member_phrases"`
	MemberEventKeys     []string  `json:"member_event_keys" db:"member_event_keys"`
	SimilarityThreshold float64   `json:"similarity_threshold" db:"similarity_threshold"`
	TotalMentions       int       `json:"total_mentions" db:"total_mentions"`
	TopAuthorityScore   float64   `json:"top_authority_score" db:"top_authority_score"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// BaselineDay is one trend_baselines daily rollup row, unique per
// (event_key, baseline_date).
type BaselineDay struct {
	EventKey       string    `json:"event_key" db:"event_key"`
	BaselineDate   time.Time `json:"baseline_date" db:"baseline_date"`
	MentionsCount  int       `json:"mentions_count" db:"mentions_count"`
	HourlyAverage  float64   `json:"hourly_average" db:"hourly_average"`
	HourlyStdDev   float64   `json:"hourly_std_dev" db:"hourly_std_dev"`
	RelativeStdDev float64   `json:"relative_std_dev" db:"relative_std_dev"`
	NewsMentions   int       `json:"news_mentions" db:"news_mentions"`
	SocialMentions int       `json:"social_mentions" db:"social_mentions"`
}

// AliasRow is one topic_aliases row.
type AliasRow struct {
	Alias string `json:"alias" db:"alias"`
	Key   string `json:"canonical_key" db:"canonical_key"`
	Title string `json:"canonical_title" db:"canonical_title"`
}

// SourceTierRow is one source_tiers row.
type SourceTierRow struct {
	Domain string `json:"domain" db:"domain"`
	Tier   string `json:"tier" db:"tier"`
}

// JobRun records one detector invocation through the job-log interface.
type JobRun struct {
	Name       string    `json:"name" db:"name"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Success    bool      `json:"success" db:"success"`
	Phase      string    `json:"phase" db:"phase"`
	Error      string    `json:"error" db:"error"`
	Stats      any       `json:"stats" db:"stats"`
}

// EventsRepo persists trend events and their evidence.
type EventsRepo interface {
	// UpsertBatch writes events in fixed-size batches, conflicting on
	// event_key. Returns the event id for every key written.
	UpsertBatch(ctx context.Context, events []TrendEvent) (map[string]int64, error)

	// ReplaceEvidence deletes old evidence for the given event ids in
	// chunks, then inserts the new rows in batches.
	ReplaceEvidence(ctx context.Context, byEvent map[int64][]Evidence) (int, error)

	// RecentEmbeddings loads the embedding index from recent trend events,
	// newest-activity first, capped at limit.
	RecentEmbeddings(ctx context.Context, since time.Time, limit int) (map[string][]float64, error)
}

// ClustersRepo persists phrase clusters.
type ClustersRepo interface {
	Upsert(ctx context.Context, clusters []PhraseCluster) (int, error)
}

// BaselinesRepo reads rolling baselines and writes today's rollup.
type BaselinesRepo interface {
	// LoadRolling aggregates daily rollups into per-key 7d/30d means and
	// 7d standard deviation, excluding the given day.
	LoadRolling(ctx context.Context, today time.Time) (map[string]domain.RollingBaseline, error)

	// UpsertDay writes one day's rollup rows, conflicting on
	// (event_key, baseline_date).
	UpsertDay(ctx context.Context, rows []BaselineDay) (int, error)
}

// LookupsRepo reads the small mostly-static tables.
type LookupsRepo interface {
	Aliases(ctx context.Context) ([]AliasRow, error)
	SourceTiers(ctx context.Context) ([]SourceTierRow, error)
}

// JobsRepo records run outcomes for the scheduler's audit trail.
type JobsRepo interface {
	Record(ctx context.Context, run JobRun) error
}

// Repository aggregates every repo the detector needs.
type Repository struct {
	Events    EventsRepo
	Clusters  ClustersRepo
	Baselines BaselinesRepo
	Lookups   LookupsRepo
	Jobs      JobsRepo
}
