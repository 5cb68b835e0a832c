package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pulsefeed/trendwatch/internal/persistence"
)

type clustersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewClustersRepo creates the PostgreSQL phrase-clusters repository.
func NewClustersRepo(db *sqlx.DB, timeout time.Duration) persistence.ClustersRepo {
	return &clustersRepo{db: db, timeout: timeout}
}

// Upsert writes clusters conflicting on the canonical phrase.
func (r *clustersRepo) Upsert(ctx context.Context, clusters []persistence.PhraseCluster) (int, error) {
	if len(clusters) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trend_phrase_clusters (
			canonical_phrase, member_phrases, member_event_keys,
			similarity_threshold, total_mentions, top_authority_score, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (canonical_phrase) DO UPDATE SET
			member_phrases = EXCLUDED.member_phrases,
			member_event_keys = EXCLUDED.member_event_keys,
			similarity_threshold = EXCLUDED.similarity_threshold,
			total_mentions = EXCLUDED.total_mentions,
			top_authority_score = EXCLUDED.top_authority_score,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare cluster upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, c := range clusters {
		if _, err := stmt.ExecContext(ctx,
			c.CanonicalPhrase, pq.Array(c.MemberPhrases), pq.Array(c.MemberEventKeys),
			c.SimilarityThreshold, c.TotalMentions, c.TopAuthorityScore, c.UpdatedAt,
		); err != nil {
			return written, fmt.Errorf("failed to upsert cluster %s: %w", c.CanonicalPhrase, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clusters: %w", err)
	}
	return written, nil
}
