// Package postgres implements the persistence repositories over PostgreSQL
// via sqlx. Every method bounds its work with a per-query timeout.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pulsefeed/trendwatch/internal/persistence"
)

const (
	// eventBatchSize bounds one upsert transaction.
	eventBatchSize = 100
	// evidenceDeleteChunk bounds one evidence delete statement.
	evidenceDeleteChunk = 100
	// evidenceInsertBatch bounds one evidence insert statement group.
	evidenceInsertBatch = 200
)

type eventsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventsRepo creates the PostgreSQL trend-events repository.
func NewEventsRepo(db *sqlx.DB, timeout time.Duration) persistence.EventsRepo {
	return &eventsRepo{db: db, timeout: timeout}
}

const upsertEventQuery = `
	INSERT INTO trend_events (
		event_key, event_title, canonical_label, is_event_phrase, label_quality, label_source,
		related_entities, related_phrases, context_terms, context_phrases, context_summary, cluster_id,
		first_seen_at, last_seen_at, peak_at,
		baseline_7d, baseline_30d, current_1h, current_6h, current_24h,
		velocity, velocity_1h, velocity_6h, acceleration, trend_score, z_score_velocity,
		confidence_score, rank_score, recency_decay, evergreen_penalty, confidence_factors,
		is_trending, is_breaking, trend_stage,
		source_count, news_source_count, social_source_count, corroboration_score, evidence_count,
		top_headline, sentiment_score, sentiment_label,
		tier1_count, tier2_count, tier3_count, weighted_evidence_score,
		has_tier12_corroboration, is_tier3_only, embedding, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12,
		$13, $14, $15,
		$16, $17, $18, $19, $20,
		$21, $22, $23, $24, $25, $26,
		$27, $28, $29, $30, $31,
		$32, $33, $34,
		$35, $36, $37, $38, $39,
		$40, $41, $42,
		$43, $44, $45, $46,
		$47, $48, $49, $50
	)
	ON CONFLICT (event_key) DO UPDATE SET
		event_title = EXCLUDED.event_title,
		canonical_label = EXCLUDED.canonical_label,
		is_event_phrase = EXCLUDED.is_event_phrase,
		label_quality = EXCLUDED.label_quality,
		label_source = EXCLUDED.label_source,
		related_entities = EXCLUDED.related_entities,
		related_phrases = EXCLUDED.related_phrases,
		context_terms = EXCLUDED.context_terms,
		context_phrases = EXCLUDED.context_phrases,
		context_summary = EXCLUDED.context_summary,
		cluster_id = EXCLUDED.cluster_id,
		first_seen_at = EXCLUDED.first_seen_at,
		last_seen_at = EXCLUDED.last_seen_at,
		peak_at = EXCLUDED.peak_at,
		baseline_7d = EXCLUDED.baseline_7d,
		baseline_30d = EXCLUDED.baseline_30d,
		current_1h = EXCLUDED.current_1h,
		current_6h = EXCLUDED.current_6h,
		current_24h = EXCLUDED.current_24h,
		velocity = EXCLUDED.velocity,
		velocity_1h = EXCLUDED.velocity_1h,
		velocity_6h = EXCLUDED.velocity_6h,
		acceleration = EXCLUDED.acceleration,
		trend_score = EXCLUDED.trend_score,
		z_score_velocity = EXCLUDED.z_score_velocity,
		confidence_score = EXCLUDED.confidence_score,
		rank_score = EXCLUDED.rank_score,
		recency_decay = EXCLUDED.recency_decay,
		evergreen_penalty = EXCLUDED.evergreen_penalty,
		confidence_factors = EXCLUDED.confidence_factors,
		is_trending = EXCLUDED.is_trending,
		is_breaking = EXCLUDED.is_breaking,
		trend_stage = EXCLUDED.trend_stage,
		source_count = EXCLUDED.source_count,
		news_source_count = EXCLUDED.news_source_count,
		social_source_count = EXCLUDED.social_source_count,
		corroboration_score = EXCLUDED.corroboration_score,
		evidence_count = EXCLUDED.evidence_count,
		top_headline = EXCLUDED.top_headline,
		sentiment_score = EXCLUDED.sentiment_score,
		sentiment_label = EXCLUDED.sentiment_label,
		tier1_count = EXCLUDED.tier1_count,
		tier2_count = EXCLUDED.tier2_count,
		tier3_count = EXCLUDED.tier3_count,
		weighted_evidence_score = EXCLUDED.weighted_evidence_score,
		has_tier12_corroboration = EXCLUDED.has_tier12_corroboration,
		is_tier3_only = EXCLUDED.is_tier3_only,
		embedding = COALESCE(EXCLUDED.embedding, trend_events.embedding),
		updated_at = EXCLUDED.updated_at
	RETURNING id`

// UpsertBatch writes events in transactions of at most eventBatchSize rows.
// A failing batch rolls back alone; the remaining batches are still
// attempted, and the joined errors are returned alongside the ids that
// landed so the caller can log and carry on with the written rows.
func (r *eventsRepo) UpsertBatch(ctx context.Context, events []persistence.TrendEvent) (map[string]int64, error) {
	ids := make(map[string]int64, len(events))
	if len(events) == 0 {
		return ids, nil
	}

	var errs []error
	for start := 0; start < len(events); start += eventBatchSize {
		end := start + eventBatchSize
		if end > len(events) {
			end = len(events)
		}
		batchIDs, err := r.upsertOne(ctx, events[start:end])
		if err != nil {
			errs = append(errs, fmt.Errorf("event batch %d: %w", start/eventBatchSize, err))
			continue
		}
		for k, id := range batchIDs {
			ids[k] = id
		}
	}
	return ids, errors.Join(errs...)
}

// upsertOne runs one batch in its own transaction. Ids are returned only on
// commit so a rolled-back batch never leaks ids for rows that do not exist.
func (r *eventsRepo) upsertOne(ctx context.Context, batch []persistence.TrendEvent) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertEventQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	ids := make(map[string]int64, len(batch))
	for _, e := range batch {
		factorsJSON, err := json.Marshal(e.ConfidenceFactors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal confidence factors for %s: %w", e.EventKey, err)
		}

		var embedding interface{}
		if len(e.Embedding) > 0 {
			embedding = pq.Array(e.Embedding)
		}

		var id int64
		err = stmt.QueryRowContext(ctx,
			e.EventKey, e.EventTitle, e.CanonicalLabel, e.IsEventPhrase, e.LabelQuality, e.LabelSource,
			pq.Array(e.RelatedEntities), pq.Array(e.RelatedPhrases), pq.Array(e.ContextTerms), pq.Array(e.ContextPhrases), e.ContextSummary, e.ClusterID,
			e.FirstSeenAt, e.LastSeenAt, e.PeakAt,
			e.Baseline7d, e.Baseline30d, e.Current1h, e.Current6h, e.Current24h,
			e.Velocity, e.Velocity1h, e.Velocity6h, e.Acceleration, e.TrendScore, e.ZScoreVelocity,
			e.Confidence, e.RankScore, e.RecencyDecay, e.EvergreenMult, factorsJSON,
			e.IsTrending, e.IsBreaking, e.TrendStage,
			e.SourceCount, e.NewsSourceCount, e.SocialSourceCount, e.Corroboration, e.EvidenceCount,
			e.TopHeadline, e.SentimentScore, e.SentimentLabel,
			e.Tier1Count, e.Tier2Count, e.Tier3Count, e.WeightedEvidence,
			e.HasTier12, e.IsTier3Only, embedding, e.UpdatedAt,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert event %s: %w", e.EventKey, err)
		}
		ids[e.EventKey] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit events: %w", err)
	}
	return ids, nil
}

// ReplaceEvidence deletes prior evidence for the given events in chunks, then
// inserts the fresh rows in batches, all within one transaction.
func (r *eventsRepo) ReplaceEvidence(ctx context.Context, byEvent map[int64][]persistence.Evidence) (int, error) {
	if len(byEvent) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventIDs := make([]int64, 0, len(byEvent))
	var rows []persistence.Evidence
	for id, evs := range byEvent {
		eventIDs = append(eventIDs, id)
		rows = append(rows, evs...)
	}

	for start := 0; start < len(eventIDs); start += evidenceDeleteChunk {
		end := start + evidenceDeleteChunk
		if end > len(eventIDs) {
			end = len(eventIDs)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM trend_evidence WHERE event_id = ANY($1)`,
			pq.Array(eventIDs[start:end]),
		); err != nil {
			return 0, fmt.Errorf("failed to delete old evidence: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trend_evidence (
			event_id, source_type, source_id, source_url, source_title, source_domain,
			published_at, contribution_score, is_primary, canonical_url, content_hash,
			sentiment_score, sentiment_label, source_tier
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare evidence insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for start := 0; start < len(rows); start += evidenceInsertBatch {
		end := start + evidenceInsertBatch
		if end > len(rows) {
			end = len(rows)
		}
		for _, ev := range rows[start:end] {
			if _, err := stmt.ExecContext(ctx,
				ev.EventID, ev.SourceType, ev.SourceID, ev.SourceURL, ev.SourceTitle, ev.SourceDomain,
				ev.PublishedAt, ev.Contribution, ev.IsPrimary, ev.CanonicalURL, ev.ContentHash,
				ev.SentimentScore, ev.SentimentLabel, ev.SourceTier,
			); err != nil {
				return written, fmt.Errorf("failed to insert evidence for event %d: %w", ev.EventID, err)
			}
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit evidence: %w", err)
	}
	return written, nil
}

// RecentEmbeddings loads the embedding index from recent trend events ordered
// by recent activity, so cap truncation keeps the liveliest stories.
func (r *eventsRepo) RecentEmbeddings(ctx context.Context, since time.Time, limit int) (map[string][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT event_key, embedding
		FROM trend_events
		WHERE updated_at >= $1 AND embedding IS NOT NULL
		ORDER BY current_24h DESC, updated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var key string
		var emb pq.Float64Array
		if err := rows.Scan(&key, &emb); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if len(emb) > 0 {
			out[key] = []float64(emb)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embedding rows: %w", err)
	}
	return out, nil
}
