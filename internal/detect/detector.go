// Package detect orchestrates one detection run: load lookups and baselines,
// load and aggregate mentions, cluster, gate, score, persist. A wall-clock
// budget guards the run; on exhaustion the top events are flushed and the
// remaining persistence phases are skipped.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsefeed/trendwatch/internal/aggregate"
	"github.com/pulsefeed/trendwatch/internal/alias"
	"github.com/pulsefeed/trendwatch/internal/cache"
	"github.com/pulsefeed/trendwatch/internal/cluster"
	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/gate"
	"github.com/pulsefeed/trendwatch/internal/ingest"
	"github.com/pulsefeed/trendwatch/internal/metrics"
	"github.com/pulsefeed/trendwatch/internal/persistence"
	"github.com/pulsefeed/trendwatch/internal/phrase"
	"github.com/pulsefeed/trendwatch/internal/score"
	"github.com/pulsefeed/trendwatch/internal/tier"
)

// DefaultBudget is the wall-clock limit for one run.
const DefaultBudget = 45 * time.Second

const (
	embeddingWindow  = 7 * 24 * time.Hour
	embeddingLimit   = 300
	evidencePerEvent = 10
	baselineTopN     = 200
	flushTopN        = 50
	lookupTTL        = 5 * time.Minute
	maxNeighbors     = 10

	aliasCacheKey = "trendwatch:lookups:aliases"
	tierCacheKey  = "trendwatch:lookups:tiers"

	jobName = "trend_detection"
)

// Pipeline phase names, stable for error responses and telemetry.
const (
	PhaseLoadAliases    = "load_aliases"
	PhaseLoadTiers      = "load_tiers"
	PhaseLoadBaselines  = "load_baselines"
	PhaseLoadMentions   = "load_mentions"
	PhaseLoadEmbeddings = "load_embeddings"
	PhaseAggregate      = "aggregate"
	PhaseCluster        = "cluster"
	PhaseScore          = "score"
	PhasePersistEvents  = "persist_events"
	PhasePersistEvid    = "persist_evidence"
	PhasePersistClust   = "persist_clusters"
	PhasePersistBase    = "persist_baselines"
)

// ErrBudgetExhausted aborts a run that ran out of budget before any events
// were ready to flush.
var ErrBudgetExhausted = errors.New("execution budget exhausted")

// PhaseError names the phase a fatal error occurred in.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Err: err}
}

// Options tunes one run. Zero values fall back to defaults.
type Options struct {
	WindowHours int           `json:"window_hours"`
	Caps        ingest.Caps   `json:"caps"`
	Budget      time.Duration `json:"-"`
}

// DefaultOptions returns the production run settings.
func DefaultOptions() Options {
	return Options{
		WindowHours: 24,
		Caps:        ingest.DefaultCaps(),
		Budget:      DefaultBudget,
	}
}

func (o Options) normalized() Options {
	if o.WindowHours <= 0 {
		o.WindowHours = 24
	}
	def := ingest.DefaultCaps()
	if o.Caps.Articles <= 0 {
		o.Caps.Articles = def.Articles
	}
	if o.Caps.AggregatorItems <= 0 {
		o.Caps.AggregatorItems = def.AggregatorItems
	}
	if o.Caps.SocialPosts <= 0 {
		o.Caps.SocialPosts = def.SocialPosts
	}
	if o.Budget <= 0 {
		o.Budget = DefaultBudget
	}
	return o
}

// Stats is the run report returned to callers and persisted to the job log.
type Stats struct {
	RunID               string         `json:"run_id"`
	TopicsProcessed     int            `json:"topics_processed"`
	EventsUpserted      int            `json:"events_upserted"`
	TrendingCount       int            `json:"trending_count"`
	BreakingCount       int            `json:"breaking_count"`
	QualityGateFiltered int            `json:"quality_gate_filtered"`
	EvidenceCount       int            `json:"evidence_count"`
	ClustersCreated     int            `json:"clusters_created"`
	DedupedSavings      int            `json:"deduped_savings"`
	BaselinesLoaded     int            `json:"baselines_loaded"`
	DurationMs          int64          `json:"duration_ms"`
	PerfLimits          []string       `json:"perf_limits,omitempty"`
	Sources             ingest.Stats   `json:"sources"`
	DroppedTopics       int            `json:"dropped_topics"`
	GateRejects         map[string]int `json:"gate_rejects,omitempty"`
}

// limit records a perf-limit tag once, reporting whether it was new.
func (s *Stats) limit(tag string) bool {
	for _, have := range s.PerfLimits {
		if have == tag {
			return false
		}
	}
	s.PerfLimits = append(s.PerfLimits, tag)
	return true
}

// Detector runs the detection pipeline against the wired repositories.
type Detector struct {
	repos   *persistence.Repository
	loader  *ingest.Loader
	cache   cache.Cache
	metrics *metrics.Registry
	gateCfg *gate.Config
	log     zerolog.Logger
	now     func() time.Time
}

// NewDetector wires a detector. A nil gate config uses the defaults.
func NewDetector(repos *persistence.Repository, loader *ingest.Loader, c cache.Cache, m *metrics.Registry, gateCfg *gate.Config, log zerolog.Logger) *Detector {
	if c == nil {
		c = cache.New()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	if gateCfg == nil {
		gateCfg = gate.DefaultConfig()
	}
	return &Detector{
		repos:   repos,
		loader:  loader,
		cache:   c,
		metrics: m,
		gateCfg: gateCfg,
		log:     log.With().Str("component", "detector").Logger(),
		now:     time.Now,
	}
}

// Run executes one detection pass and records the outcome in the job log.
func (d *Detector) Run(ctx context.Context, opts Options) (*Stats, error) {
	opts = opts.normalized()
	start := d.now()

	stats, err := d.run(ctx, opts, start)
	stats.DurationMs = d.now().Sub(start).Milliseconds()
	d.metrics.RunDuration.Observe(float64(stats.DurationMs) / 1000)

	status := "success"
	phase := ""
	if err != nil {
		status = "error"
		var pe *PhaseError
		if errors.As(err, &pe) {
			phase = pe.Phase
		}
	}
	d.metrics.RunsTotal.WithLabelValues(status).Inc()

	d.recordJob(ctx, start, stats, phase, err)

	if err != nil {
		d.log.Error().Err(err).Str("run_id", stats.RunID).Str("phase", phase).
			Int64("duration_ms", stats.DurationMs).Msg("detection run failed")
	} else {
		d.log.Info().Str("run_id", stats.RunID).
			Int("topics", stats.TopicsProcessed).
			Int("events", stats.EventsUpserted).
			Int("trending", stats.TrendingCount).
			Int("breaking", stats.BreakingCount).
			Int64("duration_ms", stats.DurationMs).
			Strs("perf_limits", stats.PerfLimits).
			Msg("detection run complete")
	}
	return stats, err
}

func (d *Detector) run(ctx context.Context, opts Options, start time.Time) (*Stats, error) {
	g := newGuard(start, opts.Budget, d.now)
	stats := &Stats{RunID: uuid.New().String(), GateRejects: map[string]int{}}
	log := d.log.With().Str("run_id", stats.RunID).Logger()

	// Lookup tables: failures fall back to the built-in seeds so a degraded
	// database never stops a run on its own.
	aliasEntries := d.loadAliases(ctx, log)
	tierEntries := d.loadTiers(ctx, log)
	aliases := alias.NewResolver(aliasEntries)
	tiers := tier.NewResolver(tierEntries)

	baselines := d.loadBaselines(ctx, log, start, stats)

	if g.exceeded() {
		return stats, phaseErr(PhaseLoadMentions, ErrBudgetExhausted)
	}

	since := start.Add(-time.Duration(opts.WindowHours) * time.Hour)
	mentions, srcStats := d.timedLoad(ctx, log, since, tiers, opts.Caps)
	stats.Sources = srcStats
	for src := range srcStats.SourceErrors {
		d.metrics.SourceErrors.WithLabelValues(src).Inc()
	}

	embeddings := d.loadEmbeddings(ctx, log, start)

	// Once mentions are in hand the run always produces events; budget
	// exhaustion from here on degrades to the emergency flush instead of
	// aborting.
	flush := g.exceeded()
	if flush {
		embeddings = nil
	}

	agg := d.runAggregate(mentions, aliases)
	topics := agg.Topics()
	stats.TopicsProcessed = len(topics)
	stats.DroppedTopics = agg.DroppedTopics()
	stats.DedupedSavings = agg.DedupSavings()

	asg := d.runCluster(embeddings, topics)

	events, evidenceByKey, aggsByKey := d.runScore(start, topics, baselines, asg, aliases, stats)

	sortEvents(events)

	if flush || g.exceeded() {
		flush = true
		if stats.limit("budget_exhausted") {
			d.metrics.BudgetTrips.Inc()
		}
		stats.limit("emergency_flush")
		if len(events) > flushTopN {
			events = events[:flushTopN]
		}
		log.Warn().Dur("elapsed", g.elapsed()).Int("flushed", len(events)).
			Msg("budget exhausted, emergency flush")
	}

	// counts reflect the rows actually persisted; the flush truncation
	// shrinks them with the event set
	stats.TrendingCount, stats.BreakingCount = tallyEvents(events)

	ids, err := d.persistEvents(ctx, log, events, stats)
	if err != nil {
		return stats, err
	}

	if flush {
		stats.limit("evidence_skipped")
		stats.limit("clusters_skipped")
		stats.limit("baselines_skipped")
		d.publishGauges(stats)
		return stats, nil
	}

	// the budget can also run out while events persist; re-check between
	// the remaining phases so a slow upsert still degrades the tail
	if d.budgetTripped(g, stats, log) {
		stats.limit("evidence_skipped")
		stats.limit("clusters_skipped")
		stats.limit("baselines_skipped")
		d.publishGauges(stats)
		return stats, nil
	}
	d.persistEvidence(ctx, log, ids, evidenceByKey, stats)

	if d.budgetTripped(g, stats, log) {
		stats.limit("clusters_skipped")
		stats.limit("baselines_skipped")
		d.publishGauges(stats)
		return stats, nil
	}
	d.persistClusters(ctx, log, asg, start, stats)

	if d.budgetTripped(g, stats, log) {
		stats.limit("baselines_skipped")
		d.publishGauges(stats)
		return stats, nil
	}
	d.persistBaselines(ctx, log, events, aggsByKey, start, stats)

	d.publishGauges(stats)
	return stats, nil
}

// budgetTripped reports mid-persistence exhaustion. The first trip counts the
// metric and logs; later checks only skip.
func (d *Detector) budgetTripped(g *guard, stats *Stats, log zerolog.Logger) bool {
	if !g.exceeded() {
		return false
	}
	if stats.limit("budget_exhausted") {
		d.metrics.BudgetTrips.Inc()
		log.Warn().Dur("elapsed", g.elapsed()).
			Msg("budget exhausted mid-persistence, skipping remaining phases")
	}
	return true
}

func tallyEvents(events []persistence.TrendEvent) (trending, breaking int) {
	for _, e := range events {
		if e.IsTrending {
			trending++
		}
		if e.IsBreaking {
			breaking++
		}
	}
	return trending, breaking
}

func (d *Detector) publishGauges(stats *Stats) {
	d.metrics.TopicsProcessed.Set(float64(stats.TopicsProcessed))
	d.metrics.EventsUpserted.Set(float64(stats.EventsUpserted))
	d.metrics.TrendingCount.Set(float64(stats.TrendingCount))
	d.metrics.BreakingCount.Set(float64(stats.BreakingCount))
	d.metrics.DedupeSavings.Add(float64(stats.DedupedSavings))
}

func (d *Detector) phaseTimer(name string) func() {
	t := d.now()
	return func() {
		d.metrics.PhaseDuration.WithLabelValues(name).Observe(d.now().Sub(t).Seconds())
	}
}

func (d *Detector) loadAliases(ctx context.Context, log zerolog.Logger) []alias.Entry {
	defer d.phaseTimer(PhaseLoadAliases)()

	var cached []persistence.AliasRow
	if d.cache.GetJSON(aliasCacheKey, &cached) {
		return aliasEntries(cached)
	}
	rows, err := d.repos.Lookups.Aliases(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("alias table unavailable, using built-ins only")
		return nil
	}
	d.cache.SetJSON(aliasCacheKey, rows, lookupTTL)
	return aliasEntries(rows)
}

func (d *Detector) loadTiers(ctx context.Context, log zerolog.Logger) []tier.Entry {
	defer d.phaseTimer(PhaseLoadTiers)()

	var cached []persistence.SourceTierRow
	if d.cache.GetJSON(tierCacheKey, &cached) {
		return tierEntries(cached)
	}
	rows, err := d.repos.Lookups.SourceTiers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("source tier table unavailable, using built-ins only")
		return nil
	}
	d.cache.SetJSON(tierCacheKey, rows, lookupTTL)
	return tierEntries(rows)
}

func aliasEntries(rows []persistence.AliasRow) []alias.Entry {
	out := make([]alias.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, alias.Entry{Alias: r.Alias, Key: r.Key, Title: r.Title})
	}
	return out
}

func tierEntries(rows []persistence.SourceTierRow) []tier.Entry {
	out := make([]tier.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, tier.Entry{Domain: r.Domain, Tier: domain.Tier(r.Tier)})
	}
	return out
}

// loadBaselines treats a missing baseline table as a cold start: every topic
// scores without history.
func (d *Detector) loadBaselines(ctx context.Context, log zerolog.Logger, now time.Time, stats *Stats) map[string]domain.RollingBaseline {
	defer d.phaseTimer(PhaseLoadBaselines)()

	baselines, err := d.repos.Baselines.LoadRolling(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("baseline load failed, scoring without history")
		return map[string]domain.RollingBaseline{}
	}
	stats.BaselinesLoaded = len(baselines)
	return baselines
}

func (d *Detector) timedLoad(ctx context.Context, log zerolog.Logger, since time.Time, tiers *tier.Resolver, caps ingest.Caps) ([]domain.Mention, ingest.Stats) {
	defer d.phaseTimer(PhaseLoadMentions)()
	mentions, srcStats := d.loader.Load(ctx, since, tiers, caps)
	log.Info().
		Int("mentions", len(mentions)).
		Int("articles", srcStats.Articles).
		Int("aggregator_items", srcStats.AggregatorItems).
		Int("social_posts", srcStats.SocialPosts).
		Msg("mentions loaded")
	return mentions, srcStats
}

func (d *Detector) loadEmbeddings(ctx context.Context, log zerolog.Logger, now time.Time) map[string][]float64 {
	defer d.phaseTimer(PhaseLoadEmbeddings)()

	embeddings, err := d.repos.Events.RecentEmbeddings(ctx, now.Add(-embeddingWindow), embeddingLimit)
	if err != nil {
		log.Warn().Err(err).Msg("embedding index unavailable, text clustering only")
		return nil
	}
	return embeddings
}

func (d *Detector) runAggregate(mentions []domain.Mention, aliases *alias.Resolver) *aggregate.Aggregator {
	defer d.phaseTimer(PhaseAggregate)()
	agg := aggregate.New(aliases)
	for _, m := range mentions {
		agg.Ingest(m)
	}
	return agg
}

func (d *Detector) runCluster(embeddings map[string][]float64, topics map[string]*domain.TopicAggregate) *cluster.Assignments {
	defer d.phaseTimer(PhaseCluster)()
	return cluster.New(embeddings).Run(topics)
}

// runScore gates, validates, and scores every aggregate, producing the event
// rows and their evidence keyed by topic.
func (d *Detector) runScore(now time.Time, topics map[string]*domain.TopicAggregate, baselines map[string]domain.RollingBaseline, asg *cluster.Assignments, aliases *alias.Resolver, stats *Stats) ([]persistence.TrendEvent, map[string][]persistence.Evidence, map[string]*domain.TopicAggregate) {
	defer d.phaseTimer(PhaseScore)()

	qualityGate := gate.New(d.gateCfg, aliases)
	scorer := score.NewScorer(now)

	keys := make([]string, 0, len(topics))
	for k := range topics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	events := make([]persistence.TrendEvent, 0, len(topics))
	evidenceByKey := make(map[string][]persistence.Evidence, len(topics))
	aggsByKey := make(map[string]*domain.TopicAggregate, len(topics))

	for _, key := range keys {
		agg := topics[key]

		gateRes := qualityGate.Evaluate(agg, now)
		if !gateRes.Passed {
			stats.QualityGateFiltered++
			stats.GateRejects[gateRes.Reason]++
			d.metrics.GateRejects.WithLabelValues(gateRes.Reason).Inc()
			continue
		}

		val := phrase.ValidateLabel(agg.Title, agg.IsEventPhrase, agg.QualityHint, agg.TopHeadline())

		labelSource := val.Source
		clusterID := asg.ClusterID(key)
		if cl := asg.ClusterFor(key); cl != nil && len(cl.Members) >= 2 &&
			cl.CanonicalKey != key && cl.IsEventPhrase && !val.IsEventPhrase {
			val.Label = cl.CanonicalTitle
			val.Quality = domain.LabelEventPhrase
			val.IsEventPhrase = true
			labelSource = domain.LabelSourceCluster
		}

		nb := neighborsOf(agg, topics)
		res := scorer.Score(agg, baselines[key], val, score.ContextInfo{
			PhraseNeighbors: nb.phraseCount,
			EntityNeighbors: nb.entityCount,
		})

		evidence := buildEvidence(agg)
		event := buildEvent(agg, val, labelSource, clusterID, nb, gateRes.Explain, res, len(evidence), now)

		events = append(events, event)
		evidenceByKey[key] = evidence
		aggsByKey[key] = agg
	}
	return events, evidenceByKey, aggsByKey
}

// sortEvents orders breaking first, then rank descending. The emergency flush
// truncates this order, so the most urgent rows always land.
func sortEvents(events []persistence.TrendEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].IsBreaking != events[j].IsBreaking {
			return events[i].IsBreaking
		}
		if events[i].RankScore != events[j].RankScore {
			return events[i].RankScore > events[j].RankScore
		}
		return events[i].EventKey < events[j].EventKey
	})
}

// persistEvents is fatal only when nothing at all was written; a partially
// failed batch run keeps the rows that landed.
func (d *Detector) persistEvents(ctx context.Context, log zerolog.Logger, events []persistence.TrendEvent, stats *Stats) (map[string]int64, error) {
	defer d.phaseTimer(PhasePersistEvents)()

	ids, err := d.repos.Events.UpsertBatch(ctx, events)
	stats.EventsUpserted = len(ids)
	if err != nil {
		if len(ids) == 0 {
			return nil, phaseErr(PhasePersistEvents, err)
		}
		log.Error().Err(err).Int("written", len(ids)).Int("wanted", len(events)).
			Msg("event batch failed partway, keeping written rows")
		stats.limit("event_batches_partial")
	}
	return ids, nil
}

func (d *Detector) persistEvidence(ctx context.Context, log zerolog.Logger, ids map[string]int64, evidenceByKey map[string][]persistence.Evidence, stats *Stats) {
	defer d.phaseTimer(PhasePersistEvid)()

	byEvent := make(map[int64][]persistence.Evidence, len(ids))
	for key, id := range ids {
		rows := evidenceByKey[key]
		if len(rows) == 0 {
			continue
		}
		for i := range rows {
			rows[i].EventID = id
		}
		byEvent[id] = rows
	}

	written, err := d.repos.Events.ReplaceEvidence(ctx, byEvent)
	stats.EvidenceCount = written
	if err != nil {
		log.Error().Err(err).Int("written", written).Msg("evidence replace failed")
		stats.limit("evidence_partial")
	}
}

func (d *Detector) persistClusters(ctx context.Context, log zerolog.Logger, asg *cluster.Assignments, now time.Time, stats *Stats) {
	defer d.phaseTimer(PhasePersistClust)()

	rows := make([]persistence.PhraseCluster, 0)
	for _, cl := range asg.Clusters {
		if len(cl.Members) < 2 {
			continue
		}
		rows = append(rows, persistence.PhraseCluster{
			CanonicalPhrase:     cl.CanonicalTitle,
			MemberPhrases:       cl.MemberTitles(),
			MemberEventKeys:     cl.MemberKeys(),
			SimilarityThreshold: cl.Threshold,
			TotalMentions:       cl.TotalMentions,
			TopAuthorityScore:   cl.TopAuthority,
			UpdatedAt:           now,
		})
	}
	if len(rows) == 0 {
		return
	}

	written, err := d.repos.Clusters.Upsert(ctx, rows)
	stats.ClustersCreated = written
	if err != nil {
		log.Error().Err(err).Int("written", written).Msg("cluster upsert failed")
		stats.limit("clusters_partial")
	}
}

// persistBaselines rolls today's activity for the top events into the daily
// baseline table feeding future runs.
func (d *Detector) persistBaselines(ctx context.Context, log zerolog.Logger, events []persistence.TrendEvent, aggsByKey map[string]*domain.TopicAggregate, now time.Time, stats *Stats) {
	defer d.phaseTimer(PhasePersistBase)()

	limit := len(events)
	if limit > baselineTopN {
		limit = baselineTopN
	}

	rows := make([]persistence.BaselineDay, 0, limit)
	for _, e := range events[:limit] {
		agg, ok := aggsByKey[e.EventKey]
		if !ok {
			continue
		}
		rows = append(rows, buildBaselineDay(agg, now))
	}
	if len(rows) == 0 {
		return
	}

	if _, err := d.repos.Baselines.UpsertDay(ctx, rows); err != nil {
		log.Error().Err(err).Msg("baseline rollup failed")
		stats.limit("baselines_partial")
	}
}

// recordJob writes the audit row; failures only log since the run itself is
// already decided.
func (d *Detector) recordJob(ctx context.Context, start time.Time, stats *Stats, phase string, runErr error) {
	run := persistence.JobRun{
		Name:       jobName,
		StartedAt:  start,
		FinishedAt: d.now(),
		Success:    runErr == nil,
		Phase:      phase,
		Stats:      stats,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := d.repos.Jobs.Record(ctx, run); err != nil {
		d.log.Error().Err(err).Str("run_id", stats.RunID).Msg("job log write failed")
	}
}
