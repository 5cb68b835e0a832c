package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresReaders implements the three source readers over the input tables.
// Queries order by publish time descending so caps keep the newest rows.
type PostgresReaders struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresReaders creates the readers over one shared pool.
func NewPostgresReaders(db *sqlx.DB, timeout time.Duration) *PostgresReaders {
	return &PostgresReaders{db: db, timeout: timeout}
}

// Articles returns the long-form article reader.
func (p *PostgresReaders) Articles() ArticleReader { return articleReader{p} }

// Aggregator returns the aggregator-item reader.
func (p *PostgresReaders) Aggregator() AggregatorReader { return aggregatorReader{p} }

// Social returns the social-post reader.
func (p *PostgresReaders) Social() SocialReader { return socialReader{p} }

type articleReader struct{ p *PostgresReaders }

func (r articleReader) Recent(ctx context.Context, since time.Time, limit int) ([]ArticleRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.p.timeout)
	defer cancel()

	query := `
		SELECT id, title, url, source_domain, published_at,
		       sentiment_score, sentiment_label, extracted_topics, tags
		FROM articles
		WHERE published_at >= $1
		ORDER BY published_at DESC
		LIMIT $2`

	rows, err := r.p.db.QueryxContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var out []ArticleRow
	for rows.Next() {
		var (
			row            ArticleRow
			sentimentLabel *string
			topicsJSON     []byte
			tags           pq.StringArray
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.URL, &row.Domain, &row.PublishedAt,
			&row.SentimentScore, &sentimentLabel, &topicsJSON, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		if sentimentLabel != nil {
			row.SentimentLabel = *sentimentLabel
		}
		// NULL column stays nil; an empty JSON array still means the
		// extractor ran and legacy tags must be ignored
		if topicsJSON != nil {
			topics := []ExtractedTopic{}
			if err := json.Unmarshal(topicsJSON, &topics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extracted topics for article %s: %w", row.ID, err)
			}
			row.ExtractedTopics = &topics
		}
		row.Tags = []string(tags)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return out, nil
}

type aggregatorReader struct{ p *PostgresReaders }

func (r aggregatorReader) Recent(ctx context.Context, since time.Time, limit int) ([]FeedItemRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.p.timeout)
	defer cancel()

	query := `
		SELECT id, title, url, canonical_url, published_at,
		       sentiment_score, sentiment_label, topics
		FROM feed_items
		WHERE published_at >= $1
		ORDER BY published_at DESC
		LIMIT $2`

	rows, err := r.p.db.QueryxContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed items: %w", err)
	}
	defer rows.Close()

	var out []FeedItemRow
	for rows.Next() {
		var (
			row            FeedItemRow
			canonicalURL   *string
			sentimentLabel *string
			topics         pq.StringArray
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.URL, &canonicalURL, &row.PublishedAt,
			&row.SentimentScore, &sentimentLabel, &topics); err != nil {
			return nil, fmt.Errorf("failed to scan feed item row: %w", err)
		}
		if canonicalURL != nil {
			row.CanonicalURL = *canonicalURL
		}
		if sentimentLabel != nil {
			row.SentimentLabel = *sentimentLabel
		}
		row.Topics = []string(topics)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed item rows: %w", err)
	}
	return out, nil
}

type socialReader struct{ p *PostgresReaders }

func (r socialReader) Recent(ctx context.Context, since time.Time, limit int) ([]SocialPostRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.p.timeout)
	defer cancel()

	query := `
		SELECT id, text, url, published_at,
		       sentiment_score, sentiment_label, topics
		FROM social_posts
		WHERE published_at >= $1
		ORDER BY published_at DESC
		LIMIT $2`

	rows, err := r.p.db.QueryxContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query social posts: %w", err)
	}
	defer rows.Close()

	var out []SocialPostRow
	for rows.Next() {
		var (
			row            SocialPostRow
			sentimentLabel *string
			topics         pq.StringArray
		)
		if err := rows.Scan(&row.ID, &row.Text, &row.URL, &row.PublishedAt,
			&row.SentimentScore, &sentimentLabel, &topics); err != nil {
			return nil, fmt.Errorf("failed to scan social post row: %w", err)
		}
		if sentimentLabel != nil {
			row.SentimentLabel = *sentimentLabel
		}
		row.Topics = []string(topics)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating social post rows: %w", err)
	}
	return out, nil
}
