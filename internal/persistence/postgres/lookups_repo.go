package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsefeed/trendwatch/internal/persistence"
)

type lookupsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLookupsRepo creates the PostgreSQL lookup-tables repository.
func NewLookupsRepo(db *sqlx.DB, timeout time.Duration) persistence.LookupsRepo {
	return &lookupsRepo{db: db, timeout: timeout}
}

func (r *lookupsRepo) Aliases(ctx context.Context) ([]persistence.AliasRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.AliasRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT alias, canonical_key, canonical_title FROM topic_aliases`)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	return rows, nil
}

func (r *lookupsRepo) SourceTiers(ctx context.Context) ([]persistence.SourceTierRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.SourceTierRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT domain, tier FROM source_tiers`)
	if err != nil {
		return nil, fmt.Errorf("failed to load source tiers: %w", err)
	}
	return rows, nil
}
