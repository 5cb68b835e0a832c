package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefeed/trendwatch/internal/cache"
	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/gate"
	"github.com/pulsefeed/trendwatch/internal/ingest"
	"github.com/pulsefeed/trendwatch/internal/metrics"
	"github.com/pulsefeed/trendwatch/internal/persistence"
)

var base = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeEvents struct {
	mu        sync.Mutex
	ids       map[string]int64
	nextID    int64
	batches   [][]persistence.TrendEvent
	evidence  map[int64][]persistence.Evidence
	evidCalls int

	embeddings    map[string][]float64
	onEmbeddings  func()
	onUpsert      func()
	upsertErr     error
	embeddingsErr error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{ids: map[string]int64{}, evidence: map[int64][]persistence.Evidence{}}
}

func (f *fakeEvents) UpsertBatch(_ context.Context, events []persistence.TrendEvent) (map[string]int64, error) {
	if f.onUpsert != nil {
		f.onUpsert()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return map[string]int64{}, f.upsertErr
	}
	f.batches = append(f.batches, events)
	out := make(map[string]int64, len(events))
	for _, e := range events {
		id, ok := f.ids[e.EventKey]
		if !ok {
			f.nextID++
			id = f.nextID
			f.ids[e.EventKey] = id
		}
		out[e.EventKey] = id
	}
	return out, nil
}

func (f *fakeEvents) ReplaceEvidence(_ context.Context, byEvent map[int64][]persistence.Evidence) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evidCalls++
	n := 0
	for id, rows := range byEvent {
		f.evidence[id] = rows
		n += len(rows)
	}
	return n, nil
}

func (f *fakeEvents) RecentEmbeddings(context.Context, time.Time, int) (map[string][]float64, error) {
	if f.onEmbeddings != nil {
		f.onEmbeddings()
	}
	if f.embeddingsErr != nil {
		return nil, f.embeddingsErr
	}
	return f.embeddings, nil
}

func (f *fakeEvents) lastBatch() []persistence.TrendEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

type fakeClusters struct {
	rows []persistence.PhraseCluster
}

func (f *fakeClusters) Upsert(_ context.Context, clusters []persistence.PhraseCluster) (int, error) {
	f.rows = append(f.rows, clusters...)
	return len(clusters), nil
}

type fakeBaselines struct {
	rolling   map[string]domain.RollingBaseline
	upserted  []persistence.BaselineDay
	onLoad    func()
	loadErr   error
}

func (f *fakeBaselines) LoadRolling(context.Context, time.Time) (map[string]domain.RollingBaseline, error) {
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.rolling == nil {
		return map[string]domain.RollingBaseline{}, nil
	}
	return f.rolling, nil
}

func (f *fakeBaselines) UpsertDay(_ context.Context, rows []persistence.BaselineDay) (int, error) {
	f.upserted = append(f.upserted, rows...)
	return len(rows), nil
}

type fakeLookups struct {
	aliases []persistence.AliasRow
	tiers   []persistence.SourceTierRow
	err     error
}

func (f *fakeLookups) Aliases(context.Context) ([]persistence.AliasRow, error) {
	return f.aliases, f.err
}

func (f *fakeLookups) SourceTiers(context.Context) ([]persistence.SourceTierRow, error) {
	return f.tiers, f.err
}

type fakeJobs struct {
	runs []persistence.JobRun
}

func (f *fakeJobs) Record(_ context.Context, run persistence.JobRun) error {
	f.runs = append(f.runs, run)
	return nil
}

type fixtures struct {
	events    *fakeEvents
	clusters  *fakeClusters
	baselines *fakeBaselines
	lookups   *fakeLookups
	jobs      *fakeJobs
}

func newFixtures() *fixtures {
	return &fixtures{
		events:    newFakeEvents(),
		clusters:  &fakeClusters{},
		baselines: &fakeBaselines{},
		lookups:   &fakeLookups{},
		jobs:      &fakeJobs{},
	}
}

func (f *fixtures) repo() *persistence.Repository {
	return &persistence.Repository{
		Events:    f.events,
		Clusters:  f.clusters,
		Baselines: f.baselines,
		Lookups:   f.lookups,
		Jobs:      f.jobs,
	}
}

type staticArticles struct{ rows []ingest.ArticleRow }

func (s staticArticles) Recent(context.Context, time.Time, int) ([]ingest.ArticleRow, error) {
	return s.rows, nil
}

type staticAggregator struct{ rows []ingest.FeedItemRow }

func (s staticAggregator) Recent(context.Context, time.Time, int) ([]ingest.FeedItemRow, error) {
	return s.rows, nil
}

type staticSocial struct{ rows []ingest.SocialPostRow }

func (s staticSocial) Recent(context.Context, time.Time, int) ([]ingest.SocialPostRow, error) {
	return s.rows, nil
}

func newTestDetector(f *fixtures, clk *fakeClock, articles []ingest.ArticleRow, social []ingest.SocialPostRow) *Detector {
	loader := ingest.NewLoader(
		staticArticles{rows: articles},
		staticAggregator{},
		staticSocial{rows: social},
		zerolog.Nop(),
	)
	d := NewDetector(f.repo(), loader, cache.New(), metrics.NewRegistry(), nil, zerolog.Nop())
	d.now = clk.Now
	return d
}

func article(id, title, url, dom string, at time.Time, topics ...ingest.ExtractedTopic) ingest.ArticleRow {
	ts := at
	return ingest.ArticleRow{
		ID:              id,
		Title:           title,
		URL:             url,
		Domain:          dom,
		PublishedAt:     &ts,
		ExtractedTopics: &topics,
	}
}

func social(id, text string, at time.Time, topics ...string) ingest.SocialPostRow {
	ts := at
	return ingest.SocialPostRow{
		ID:          id,
		Text:        text,
		URL:         "https://social.example/" + id,
		PublishedAt: &ts,
		Topics:      topics,
	}
}

func eventTopic(title string) ingest.ExtractedTopic {
	return ingest.ExtractedTopic{Topic: title, LabelQuality: "event_phrase", IsEventPhrase: true}
}

func senateFixture() ([]ingest.ArticleRow, []ingest.SocialPostRow) {
	at := base.Add(-30 * time.Minute)
	articles := []ingest.ArticleRow{
		article("a1", "Senate Rejects Bill", "https://reuters.com/a1", "reuters.com", at, eventTopic("Senate Rejects Bill")),
		article("a2", "Senate Rejects Spending Bill", "https://apnews.com/a2", "apnews.com", at, eventTopic("Senate Rejects Bill")),
		article("a3", "Bill Rejected In Senate Vote", "https://politico.com/a3", "politico.com", at,
			eventTopic("Senate Rejects Bill"), ingest.ExtractedTopic{Topic: "Congress"}),
	}
	socials := []ingest.SocialPostRow{
		social("s1", "senate just rejected the bill", at, "Senate Rejects Bill"),
	}
	return articles, socials
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixtures()
	f.baselines.rolling = map[string]domain.RollingBaseline{
		"senate_rejects_bill": {Key: "senate_rejects_bill", Baseline7d: 0.5, Baseline30d: 0.4, StdDev7d: 0.5, DataPoints7d: 7, DataPoints30d: 28},
	}
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TopicsProcessed, "senate topic plus congress")
	assert.Equal(t, 1, stats.EventsUpserted)
	assert.Equal(t, 1, stats.QualityGateFiltered, "single low-volume word rejected")
	assert.Equal(t, 1, stats.GateRejects[gate.ReasonSingleWordVolume])
	assert.Equal(t, 1, stats.TrendingCount)
	assert.Equal(t, 1, stats.BreakingCount)
	assert.Equal(t, 1, stats.BaselinesLoaded)
	assert.Equal(t, 4, stats.EvidenceCount)

	batch := f.events.lastBatch()
	require.Len(t, batch, 1)
	e := batch[0]
	assert.Equal(t, "senate_rejects_bill", e.EventKey)
	assert.True(t, e.IsEventPhrase)
	assert.Equal(t, string(domain.LabelEventPhrase), e.LabelQuality)
	assert.True(t, e.IsTrending)
	assert.True(t, e.IsBreaking)
	assert.Equal(t, string(domain.PathFreshSpike), e.ConfidenceFactors.BreakingCriteria.BreakingPath)
	assert.Equal(t, 4, e.Current1h)
	assert.Equal(t, 3, e.NewsSourceCount)
	assert.Equal(t, 1, e.SocialSourceCount)
	assert.Equal(t, 3, e.Tier2Count, "all three outlets are built-in tier2")
	assert.True(t, e.HasTier12)

	rows := f.events.evidence[1]
	require.Len(t, rows, 4)
	assert.True(t, rows[0].IsPrimary)
	assert.Equal(t, "tier2", rows[0].SourceTier, "tier2 news ranks above tier3 social")
	assert.Equal(t, "tier3", rows[3].SourceTier)

	require.Len(t, f.jobs.runs, 1)
	assert.True(t, f.jobs.runs[0].Success)
	assert.Equal(t, jobName, f.jobs.runs[0].Name)

	require.NotEmpty(t, f.baselines.upserted)
	assert.Equal(t, "senate_rejects_bill", f.baselines.upserted[0].EventKey)
	assert.Equal(t, 4, f.baselines.upserted[0].MentionsCount)
}

func TestRun_DedupSavings(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	at := base.Add(-20 * time.Minute)
	// Same story syndicated twice, the second URL differing only by tracking
	// params: one fingerprint, one deduplicated mention.
	articles := []ingest.ArticleRow{
		article("a1", "Fed Raises Rates", "https://reuters.com/fed", "reuters.com", at, eventTopic("Fed Raises Rates")),
		article("a2", "Fed Raises Rates", "https://reuters.com/fed?utm_source=rss", "reuters.com", at, eventTopic("Fed Raises Rates")),
	}
	d := newTestDetector(f, clk, articles, nil)

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DedupedSavings)
	assert.Equal(t, 1, stats.QualityGateFiltered, "one deduped mention is below the multi-word floor")
	assert.Equal(t, 1, stats.GateRejects[gate.ReasonMultiWordVolume])
	assert.Zero(t, stats.EventsUpserted)
}

func TestRun_EmergencyFlush(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	// The budget expires while the embedding index loads; everything after
	// scoring must be skipped except the event flush itself.
	f.events.onEmbeddings = func() { clk.Advance(DefaultBudget + time.Second) }

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.EventsUpserted)
	assert.Contains(t, stats.PerfLimits, "budget_exhausted")
	assert.Contains(t, stats.PerfLimits, "emergency_flush")
	assert.Contains(t, stats.PerfLimits, "evidence_skipped")
	assert.Contains(t, stats.PerfLimits, "clusters_skipped")
	assert.Contains(t, stats.PerfLimits, "baselines_skipped")

	assert.Zero(t, f.events.evidCalls, "evidence writes skipped on flush")
	assert.Empty(t, f.clusters.rows)
	assert.Empty(t, f.baselines.upserted)
	assert.Zero(t, stats.EvidenceCount)
	assert.Equal(t, 1, stats.TrendingCount, "counts cover the flushed rows only")
	assert.Zero(t, stats.BreakingCount, "cold-start z stays below every breaking path")
}

func TestRun_BudgetExhaustedDuringEventPersist(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	// The events land within budget but take so long that the remaining
	// persistence phases must be skipped.
	f.events.onUpsert = func() { clk.Advance(DefaultBudget + time.Second) }

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.EventsUpserted)
	assert.Contains(t, stats.PerfLimits, "budget_exhausted")
	assert.Contains(t, stats.PerfLimits, "evidence_skipped")
	assert.Contains(t, stats.PerfLimits, "clusters_skipped")
	assert.Contains(t, stats.PerfLimits, "baselines_skipped")
	assert.NotContains(t, stats.PerfLimits, "emergency_flush", "the full event set already persisted")

	assert.Zero(t, f.events.evidCalls)
	assert.Empty(t, f.clusters.rows)
	assert.Empty(t, f.baselines.upserted)
}

func TestRun_BudgetExhaustedBeforeMentions(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	f.baselines.onLoad = func() { clk.Advance(DefaultBudget + time.Second) }

	_, err := d.Run(context.Background(), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseLoadMentions, pe.Phase)

	require.Len(t, f.jobs.runs, 1)
	assert.False(t, f.jobs.runs[0].Success)
	assert.Equal(t, PhaseLoadMentions, f.jobs.runs[0].Phase)
}

func TestRun_EventPersistFailureIsFatal(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	f.events.upsertErr = errors.New("connection refused")

	_, err := d.Run(context.Background(), DefaultOptions())
	require.Error(t, err)

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhasePersistEvents, pe.Phase)
	require.Len(t, f.jobs.runs, 1)
	assert.False(t, f.jobs.runs[0].Success)
}

func TestRun_LookupFailureFallsBackToBuiltins(t *testing.T) {
	f := newFixtures()
	f.lookups.err = errors.New("relation does not exist")
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventsUpserted, "built-in tiers still classify reuters as tier2")
}

func TestRun_ClusterCanonicalOverridesEntityLabel(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	at := base.Add(-30 * time.Minute)

	entity := ingest.ExtractedTopic{Topic: "Kash Patel"}
	event := eventTopic("Kash Patel Confirmed FBI Director")
	articles := []ingest.ArticleRow{
		article("a1", "Patel Confirmed", "https://reuters.com/p1", "reuters.com", at, entity, event),
		article("a2", "Senate Confirms Patel", "https://apnews.com/p2", "apnews.com", at, entity, event),
		article("a3", "FBI Gets New Director", "https://politico.com/p3", "politico.com", at, entity, event),
	}
	socials := []ingest.SocialPostRow{
		social("s1", "patel confirmed as fbi director", at, "Kash Patel", "Kash Patel Confirmed FBI Director"),
	}
	d := newTestDetector(f, clk, articles, socials)

	stats, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EventsUpserted)
	assert.Equal(t, 1, stats.ClustersCreated)

	batch := f.events.lastBatch()
	require.Len(t, batch, 2)

	var entityEvent *persistence.TrendEvent
	for i := range batch {
		if batch[i].EventKey == "kash_patel" {
			entityEvent = &batch[i]
		}
	}
	require.NotNil(t, entityEvent)

	require.NotNil(t, entityEvent.ClusterID)
	assert.Equal(t, "kash_patel_confirmed_fbi_director", *entityEvent.ClusterID)
	assert.Equal(t, domain.LabelSourceCluster, entityEvent.LabelSource)
	assert.True(t, entityEvent.IsEventPhrase, "cluster canonical phrase replaces the bare entity label")

	require.Len(t, f.clusters.rows, 1)
	assert.Len(t, f.clusters.rows[0].MemberEventKeys, 2)
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixtures()
	clk := newFakeClock(base)
	articles, socials := senateFixture()
	d := newTestDetector(f, clk, articles, socials)

	first, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)
	second, err := d.Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.EventsUpserted, second.EventsUpserted)
	assert.Equal(t, first.TopicsProcessed, second.TopicsProcessed)
	require.Len(t, f.events.batches, 2)
	assert.Equal(t, f.events.batches[0][0].EventKey, f.events.batches[1][0].EventKey)
	assert.Equal(t, int64(1), f.events.ids["senate_rejects_bill"], "re-running upserts the same row")
}

func TestSortEvents_BreakingFirstThenRank(t *testing.T) {
	events := []persistence.TrendEvent{
		{EventKey: "c", RankScore: 90},
		{EventKey: "a", RankScore: 10, IsBreaking: true},
		{EventKey: "b", RankScore: 50, IsBreaking: true},
	}
	sortEvents(events)

	assert.Equal(t, "b", events[0].EventKey)
	assert.Equal(t, "a", events[1].EventKey)
	assert.Equal(t, "c", events[2].EventKey)
}

func TestTallyEvents_CountsOnlyRetainedRows(t *testing.T) {
	events := []persistence.TrendEvent{
		{EventKey: "c", RankScore: 40, IsTrending: true},
		{EventKey: "a", RankScore: 80, IsBreaking: true, IsTrending: true},
		{EventKey: "b", RankScore: 60, IsTrending: true},
	}
	sortEvents(events)
	kept := events[:2]

	trending, breaking := tallyEvents(kept)
	assert.Equal(t, 2, trending, "the truncated row drops out of the count")
	assert.Equal(t, 1, breaking)
}

func TestGuard_Remaining(t *testing.T) {
	clk := newFakeClock(base)
	g := newGuard(base, 10*time.Second, clk.Now)

	assert.False(t, g.exceeded())
	assert.Equal(t, 10*time.Second, g.remaining())

	clk.Advance(11 * time.Second)
	assert.True(t, g.exceeded())
	assert.Equal(t, time.Duration(0), g.remaining())
}
