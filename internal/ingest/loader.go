package ingest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	cb "github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/tier"
)

// socialTextLimit caps social post text carried into the pipeline.
const socialTextLimit = 200

// Caps bound how many rows each source may contribute. Readers order by
// publish time descending so truncation keeps the newest items.
type Caps struct {
	Articles        int `yaml:"articles" json:"articles"`
	AggregatorItems int `yaml:"aggregator_items" json:"aggregator_items"`
	SocialPosts     int `yaml:"social_posts" json:"social_posts"`
}

// DefaultCaps returns the production per-source caps.
func DefaultCaps() Caps {
	return Caps{Articles: 1000, AggregatorItems: 800, SocialPosts: 2000}
}

// Stats reports what one load pass did, per source.
type Stats struct {
	Articles        int               `json:"articles"`
	AggregatorItems int               `json:"aggregator_items"`
	SocialPosts     int               `json:"social_posts"`
	SkippedNoTime   int               `json:"skipped_no_timestamp"`
	SkippedNoTopics int               `json:"skipped_no_topics"`
	SourceErrors    map[string]string `json:"source_errors,omitempty"`
}

// Loader fans out to the three source readers and normalizes rows into
// mentions. The per-source circuit breakers persist across runs so a
// flapping table opens the breaker instead of burning every run's budget.
type Loader struct {
	articles   ArticleReader
	aggregator AggregatorReader
	social     SocialReader
	log        zerolog.Logger

	articleBreaker    *cb.CircuitBreaker
	aggregatorBreaker *cb.CircuitBreaker
	socialBreaker     *cb.CircuitBreaker
}

// NewLoader creates a loader over the given readers.
func NewLoader(articles ArticleReader, aggregator AggregatorReader, social SocialReader, log zerolog.Logger) *Loader {
	return &Loader{
		articles:          articles,
		aggregator:        aggregator,
		social:            social,
		log:               log.With().Str("component", "loader").Logger(),
		articleBreaker:    newBreaker("articles"),
		aggregatorBreaker: newBreaker("aggregator"),
		socialBreaker:     newBreaker("social"),
	}
}

func newBreaker(name string) *cb.CircuitBreaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return cb.NewCircuitBreaker(st)
}

// Load reads all three sources concurrently and joins before returning. A
// failing source is logged and contributes zero mentions; the run proceeds
// with whatever loaded. Tiers and caps are per-run inputs since the tier
// table reloads each invocation and the caller may tune caps per request.
func (l *Loader) Load(ctx context.Context, since time.Time, tiers *tier.Resolver, caps Caps) ([]domain.Mention, Stats) {
	var (
		articles   []domain.Mention
		aggregator []domain.Mention
		social     []domain.Mention

		stats = Stats{SourceErrors: map[string]string{}}
		aStat, gStat, sStat Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articles, aStat = l.loadArticles(gctx, since, tiers, caps.Articles)
		return nil
	})
	g.Go(func() error {
		aggregator, gStat = l.loadAggregator(gctx, since, tiers, caps.AggregatorItems)
		return nil
	})
	g.Go(func() error {
		social, sStat = l.loadSocial(gctx, since, caps.SocialPosts)
		return nil
	})
	// source errors are contained, never propagated
	_ = g.Wait()

	stats.Articles = aStat.Articles
	stats.AggregatorItems = gStat.AggregatorItems
	stats.SocialPosts = sStat.SocialPosts
	stats.SkippedNoTime = aStat.SkippedNoTime + gStat.SkippedNoTime + sStat.SkippedNoTime
	stats.SkippedNoTopics = aStat.SkippedNoTopics + gStat.SkippedNoTopics + sStat.SkippedNoTopics
	for _, s := range []Stats{aStat, gStat, sStat} {
		for src, msg := range s.SourceErrors {
			stats.SourceErrors[src] = msg
		}
	}
	if len(stats.SourceErrors) == 0 {
		stats.SourceErrors = nil
	}

	out := make([]domain.Mention, 0, len(articles)+len(aggregator)+len(social))
	out = append(out, articles...)
	out = append(out, aggregator...)
	out = append(out, social...)
	return out, stats
}

func (l *Loader) loadArticles(ctx context.Context, since time.Time, tiers *tier.Resolver, limit int) ([]domain.Mention, Stats) {
	stats := Stats{SourceErrors: map[string]string{}}
	rowsAny, err := l.articleBreaker.Execute(func() (any, error) {
		return l.articles.Recent(ctx, since, limit)
	})
	if err != nil {
		l.log.Error().Err(err).Str("source", "articles").Msg("source load failed, contributing zero")
		stats.SourceErrors["articles"] = err.Error()
		return nil, stats
	}

	var out []domain.Mention
	for _, row := range rowsAny.([]ArticleRow) {
		if row.PublishedAt == nil || row.PublishedAt.IsZero() {
			stats.SkippedNoTime++
			continue
		}
		topics := articleTopics(row)
		if len(topics) == 0 {
			stats.SkippedNoTopics++
			continue
		}

		canonical := domain.CanonicalURL(row.URL)
		d := strings.ToLower(strings.TrimSpace(row.Domain))
		if d == "" {
			d = hostOf(canonical)
		}
		m := domain.Mention{
			ID:             row.ID,
			Title:          row.Title,
			Source:         domain.SourceArticle,
			PublishedAt:    row.PublishedAt.UTC(),
			Domain:         d,
			URL:            row.URL,
			CanonicalURL:   canonical,
			Tier:           tiers.ForMention(domain.SourceArticle, d),
			SentimentScore: row.SentimentScore,
			SentimentLabel: domain.SentimentLabel(row.SentimentLabel),
			Topics:         topics,
		}
		m.ContentHash = domain.ArticleContentHash(m.Title, m.CanonicalURL, m.PublishedAt)
		out = append(out, m)
		stats.Articles++
	}
	return out, stats
}

// articleTopics prefers structured extraction over legacy tags. A non-NULL
// extracted_topics column, even when the array is empty, means the extractor
// ran and the tags must not be consulted.
func articleTopics(row ArticleRow) []domain.TopicRef {
	if row.ExtractedTopics != nil {
		refs := make([]domain.TopicRef, 0, len(*row.ExtractedTopics))
		for _, t := range *row.ExtractedTopics {
			if strings.TrimSpace(t.Topic) == "" {
				continue
			}
			refs = append(refs, domain.TopicRef{
				Raw:              t.Topic,
				QualityHint:      domain.LabelQuality(t.LabelQuality),
				EventPhraseClaim: t.IsEventPhrase,
			})
		}
		return refs
	}

	refs := make([]domain.TopicRef, 0, len(row.Tags))
	for _, tag := range row.Tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		refs = append(refs, domain.TopicRef{Raw: tag})
	}
	return refs
}

func (l *Loader) loadAggregator(ctx context.Context, since time.Time, tiers *tier.Resolver, limit int) ([]domain.Mention, Stats) {
	stats := Stats{SourceErrors: map[string]string{}}
	rowsAny, err := l.aggregatorBreaker.Execute(func() (any, error) {
		return l.aggregator.Recent(ctx, since, limit)
	})
	if err != nil {
		l.log.Error().Err(err).Str("source", "aggregator").Msg("source load failed, contributing zero")
		stats.SourceErrors["aggregator"] = err.Error()
		return nil, stats
	}

	var out []domain.Mention
	for _, row := range rowsAny.([]FeedItemRow) {
		if row.PublishedAt == nil || row.PublishedAt.IsZero() {
			stats.SkippedNoTime++
			continue
		}
		if len(row.Topics) == 0 {
			stats.SkippedNoTopics++
			continue
		}

		// the canonical URL names the real publisher; the item URL is
		// usually an aggregator redirect that would collapse every
		// domain into one
		canonical := domain.CanonicalURL(row.CanonicalURL)
		if canonical == "" {
			canonical = domain.CanonicalURL(row.URL)
		}
		d := hostOf(canonical)

		refs := make([]domain.TopicRef, 0, len(row.Topics))
		for _, t := range row.Topics {
			if strings.TrimSpace(t) == "" {
				continue
			}
			refs = append(refs, domain.TopicRef{Raw: t})
		}
		if len(refs) == 0 {
			stats.SkippedNoTopics++
			continue
		}

		m := domain.Mention{
			ID:             row.ID,
			Title:          row.Title,
			Source:         domain.SourceAggregator,
			PublishedAt:    row.PublishedAt.UTC(),
			Domain:         d,
			URL:            row.URL,
			CanonicalURL:   canonical,
			Tier:           tiers.ForMention(domain.SourceAggregator, d),
			SentimentScore: row.SentimentScore,
			SentimentLabel: domain.SentimentLabel(row.SentimentLabel),
			Topics:         refs,
		}
		m.ContentHash = domain.ArticleContentHash(m.Title, m.CanonicalURL, m.PublishedAt)
		out = append(out, m)
		stats.AggregatorItems++
	}
	return out, stats
}

func (l *Loader) loadSocial(ctx context.Context, since time.Time, limit int) ([]domain.Mention, Stats) {
	stats := Stats{SourceErrors: map[string]string{}}
	rowsAny, err := l.socialBreaker.Execute(func() (any, error) {
		return l.social.Recent(ctx, since, limit)
	})
	if err != nil {
		l.log.Error().Err(err).Str("source", "social").Msg("source load failed, contributing zero")
		stats.SourceErrors["social"] = err.Error()
		return nil, stats
	}

	var out []domain.Mention
	for _, row := range rowsAny.([]SocialPostRow) {
		if row.PublishedAt == nil || row.PublishedAt.IsZero() {
			stats.SkippedNoTime++
			continue
		}
		if len(row.Topics) == 0 {
			stats.SkippedNoTopics++
			continue
		}

		refs := make([]domain.TopicRef, 0, len(row.Topics))
		for _, t := range row.Topics {
			if strings.TrimSpace(t) == "" {
				continue
			}
			refs = append(refs, domain.TopicRef{Raw: t})
		}
		if len(refs) == 0 {
			stats.SkippedNoTopics++
			continue
		}

		m := domain.Mention{
			ID:             row.ID,
			Title:          truncateRunes(row.Text, socialTextLimit),
			Source:         domain.SourceSocial,
			PublishedAt:    row.PublishedAt.UTC(),
			Domain:         domain.SocialDomain,
			URL:            row.URL,
			CanonicalURL:   domain.CanonicalURL(row.URL),
			Tier:           domain.Tier3,
			SentimentScore: row.SentimentScore,
			SentimentLabel: domain.SentimentLabel(row.SentimentLabel),
			Topics:         refs,
		}
		m.ContentHash = domain.SocialContentHash(row.Text)
		out = append(out, m)
		stats.SocialPosts++
	}
	return out, stats
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
