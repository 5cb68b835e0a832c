package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefeed/trendwatch/internal/persistence"
)

func TestClustersUpsert_ConflictsOnCanonicalPhrase(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClustersRepo(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO trend_phrase_clusters")
	prep.ExpectExec().
		WithArgs("fed rate decision", sqlmock.AnyArg(), sqlmock.AnyArg(), 0.6, 12, 3.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	written, err := repo.Upsert(context.Background(), []persistence.PhraseCluster{{
		CanonicalPhrase:     "fed rate decision",
		MemberPhrases:       []string{"fed rate decision", "fed rate cut"},
		MemberEventKeys:     []string{"fed_rate_decision", "fed_rate_cut"},
		SimilarityThreshold: 0.6,
		TotalMentions:       12,
		TopAuthorityScore:   3.5,
		UpdatedAt:           time.Now(),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaselinesLoadRolling_ExcludesToday(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaselinesRepo(db, time.Second)

	today := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"event_key", "baseline_7d", "baseline_30d", "stddev_7d", "data_points_7d", "data_points_30d",
	}).AddRow("senate_rejects_bill", 0.5, 0.4, 0.5, 7, 28)

	mock.ExpectQuery("FROM trend_baselines").
		WithArgs(today.Truncate(24 * time.Hour)).
		WillReturnRows(rows)

	out, err := repo.LoadRolling(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, out, 1)

	b := out["senate_rejects_bill"]
	assert.Equal(t, 0.5, b.Baseline7d)
	assert.Equal(t, 0.4, b.Baseline30d)
	assert.Equal(t, 7, b.DataPoints7d)
	assert.True(t, b.HasHistory())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaselinesUpsertDay_TruncatesDate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaselinesRepo(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO trend_baselines")
	prep.ExpectExec().
		WithArgs("senate_rejects_bill", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			4, 0.17, 0.8, 4.7, 3, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	written, err := repo.UpsertDay(context.Background(), []persistence.BaselineDay{{
		EventKey:       "senate_rejects_bill",
		BaselineDate:   time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC),
		MentionsCount:  4,
		HourlyAverage:  0.17,
		HourlyStdDev:   0.8,
		RelativeStdDev: 4.7,
		NewsMentions:   3,
		SocialMentions: 1,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookups_AliasesAndTiers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLookupsRepo(db, time.Second)

	mock.ExpectQuery("FROM topic_aliases").WillReturnRows(
		sqlmock.NewRows([]string{"alias", "canonical_key", "canonical_title"}).
			AddRow("potus", "donald_trump", "Donald Trump").
			AddRow("breaking news", "__SKIP__", ""))
	mock.ExpectQuery("FROM source_tiers").WillReturnRows(
		sqlmock.NewRows([]string{"domain", "tier"}).
			AddRow("reuters.com", "tier1"))

	aliases, err := repo.Aliases(context.Background())
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "donald_trump", aliases[0].Key)
	assert.Equal(t, "__SKIP__", aliases[1].Key)

	tiers, err := repo.SourceTiers(context.Background())
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, "tier1", tiers[0].Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsRecord_MarshalsStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepo(db, time.Second)

	started := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs("trend_detection", started, started.Add(30*time.Second), true, "", "",
			[]byte(`{"events_upserted":7}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Record(context.Background(), persistence.JobRun{
		Name:       "trend_detection",
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Success:    true,
		Stats:      map[string]int{"events_upserted": 7},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
