package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsefeed/trendwatch/internal/persistence"
)

type jobsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewJobsRepo creates the PostgreSQL job-log repository.
func NewJobsRepo(db *sqlx.DB, timeout time.Duration) persistence.JobsRepo {
	return &jobsRepo{db: db, timeout: timeout}
}

// Record appends one run to the job log. Stats are stored as JSONB.
func (r *jobsRepo) Record(ctx context.Context, run persistence.JobRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal job stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO job_runs (name, started_at, finished_at, success, phase, error, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.Name, run.StartedAt, run.FinishedAt, run.Success, run.Phase, run.Error, statsJSON)
	if err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}
	return nil
}
