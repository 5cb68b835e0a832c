package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/persistence"
)

type baselinesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBaselinesRepo creates the PostgreSQL baseline-rollups repository.
func NewBaselinesRepo(db *sqlx.DB, timeout time.Duration) persistence.BaselinesRepo {
	return &baselinesRepo{db: db, timeout: timeout}
}

// LoadRolling folds the prior 30 days of daily rollups into per-key rolling
// statistics. Today's partial rollup is excluded so a mid-day run does not
// bias its own baseline.
func (r *baselinesRepo) LoadRolling(ctx context.Context, today time.Time) (map[string]domain.RollingBaseline, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	day := today.UTC().Truncate(24 * time.Hour)

	query := `
		SELECT
			event_key,
			COALESCE(AVG(hourly_average) FILTER (WHERE baseline_date >= $1::date - 7), 0)  AS baseline_7d,
			COALESCE(AVG(hourly_average), 0)                                               AS baseline_30d,
			COALESCE(AVG(hourly_std_dev) FILTER (WHERE baseline_date >= $1::date - 7), 0)  AS stddev_7d,
			COUNT(*) FILTER (WHERE baseline_date >= $1::date - 7)                          AS data_points_7d,
			COUNT(*)                                                                       AS data_points_30d
		FROM trend_baselines
		WHERE baseline_date < $1::date AND baseline_date >= $1::date - 30
		GROUP BY event_key`

	rows, err := r.db.QueryxContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query rolling baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.RollingBaseline)
	for rows.Next() {
		var b domain.RollingBaseline
		if err := rows.Scan(&b.Key, &b.Baseline7d, &b.Baseline30d, &b.StdDev7d, &b.DataPoints7d, &b.DataPoints30d); err != nil {
			return nil, fmt.Errorf("failed to scan baseline row: %w", err)
		}
		out[b.Key] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baseline rows: %w", err)
	}
	return out, nil
}

// UpsertDay writes one day's rollups, conflicting on (event_key, baseline_date).
func (r *baselinesRepo) UpsertDay(ctx context.Context, rollups []persistence.BaselineDay) (int, error) {
	if len(rollups) == 0 {
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
		INSERT INTO trend_baselines (
			event_key, baseline_date, mentions_count, hourly_average,
			hourly_std_dev, relative_std_dev, news_mentions, social_mentions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_key, baseline_date) DO UPDATE SET
			mentions_count = EXCLUDED.mentions_count,
			hourly_average = EXCLUDED.hourly_average,
			hourly_std_dev = EXCLUDED.hourly_std_dev,
			relative_std_dev = EXCLUDED.relative_std_dev,
			news_mentions = EXCLUDED.news_mentions,
			social_mentions = EXCLUDED.social_mentions`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare baseline upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, b := range rollups {
		if _, err := stmt.ExecContext(ctx,
			b.EventKey, b.BaselineDate.UTC().Truncate(24*time.Hour), b.MentionsCount, b.HourlyAverage,
			b.HourlyStdDev, b.RelativeStdDev, b.NewsMentions, b.SocialMentions,
		); err != nil {
			return written, fmt.Errorf("failed to upsert baseline for %s: %w", b.EventKey, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit baselines: %w", err)
	}
	return written, nil
}
