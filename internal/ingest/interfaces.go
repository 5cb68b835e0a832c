// Package ingest loads recent mentions from the three source families and
// normalizes them into domain mentions: tiers resolved, URLs canonicalized,
// content fingerprints computed.
package ingest

import (
	"context"
	"time"
)

// ExtractedTopic is one structured topic attached to an article by the
// upstream extractor, with its optional label-quality hint.
type ExtractedTopic struct {
	Topic         string `json:"topic"`
	LabelQuality  string `json:"label_quality,omitempty"`
	IsEventPhrase bool   `json:"is_event_phrase,omitempty"`
}

// ArticleRow is one long-form article as read from the articles table.
// ExtractedTopics is nil when the column is NULL, distinguishing rows that
// predate structured extraction from rows whose extraction yielded nothing.
type ArticleRow struct {
	ID              string
	Title           string
	URL             string
	Domain          string
	PublishedAt     *time.Time
	SentimentScore  *float64
	SentimentLabel  string
	ExtractedTopics *[]ExtractedTopic
	Tags            []string
}

// FeedItemRow is one news-aggregator item. CanonicalURL, when present, names
// the original publisher rather than the aggregator's redirect host.
type FeedItemRow struct {
	ID             string
	Title          string
	URL            string
	CanonicalURL   string
	PublishedAt    *time.Time
	SentimentScore *float64
	SentimentLabel string
	Topics         []string
}

// SocialPostRow is one short-form social post.
type SocialPostRow struct {
	ID             string
	Text           string
	URL            string
	PublishedAt    *time.Time
	SentimentScore *float64
	SentimentLabel string
	Topics         []string
}

// ArticleReader reads recent long-form articles, newest first.
type ArticleReader interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]ArticleRow, error)
}

// AggregatorReader reads recent aggregator items, newest first.
type AggregatorReader interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]FeedItemRow, error)
}

// SocialReader reads recent social posts, newest first.
type SocialReader interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]SocialPostRow, error)
}
