package gate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefeed/trendwatch/internal/alias"
	"github.com/pulsefeed/trendwatch/internal/domain"
)

func buildAggregate(key, title string, mentions int, domains int, src domain.SourceFamily, tier domain.Tier, now time.Time) *domain.TopicAggregate {
	agg := domain.NewTopicAggregate(key, title, false, "")
	for i := 0; i < mentions; i++ {
		agg.Observe(domain.Mention{
			ID:          fmt.Sprintf("m%d", i),
			Title:       title,
			Source:      src,
			PublishedAt: now.Add(-time.Duration(i) * time.Minute),
			Domain:      fmt.Sprintf("outlet%d.example.com", i%domains),
			Tier:        tier,
			ContentHash: uint64(i),
		})
	}
	return agg
}

func TestEvaluate_Blocklist(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	res := g.Evaluate(buildAggregate("politics", "Politics", 50, 5, domain.SourceArticle, domain.Tier1, now), now)
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonBlocklisted, res.Reason)

	res = g.Evaluate(buildAggregate("latest_update", "Latest Update", 50, 5, domain.SourceArticle, domain.Tier1, now), now)
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonAllWordsBlocklisted, res.Reason)
}

func TestEvaluate_SingleWordNoTier12(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	// 40 mentions, one domain, tier3 only
	agg := buildAggregate("congress", "Congress", 40, 1, domain.SourceArticle, domain.Tier3, now)
	res := g.Evaluate(agg, now)

	assert.False(t, res.Passed)
	assert.Equal(t, ReasonSingleWordNoTier12, res.Reason, "tier check outranks the domain count in the reject reason")
	assert.Contains(t, res.FailureReasons[0], ReasonSingleWordNoTier12)
}

func TestEvaluate_SingleWordPasses(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	agg := buildAggregate("congress", "Congress", 25, 4, domain.SourceArticle, domain.Tier2, now)
	res := g.Evaluate(agg, now)

	require.True(t, res.Passed, "failures: %v", res.FailureReasons)
	assert.NotEmpty(t, res.Explain)
	assert.Empty(t, res.Reason)
}

func TestEvaluate_ProtectedAcronymWaivesTier(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	agg := buildAggregate("fbi", "Fbi", 25, 4, domain.SourceArticle, domain.Tier3, now)
	res := g.Evaluate(agg, now)

	require.True(t, res.Passed, "failures: %v", res.FailureReasons)
	assert.Contains(t, res.Explain, "protected=true")
}

func TestEvaluate_SingleWordLowVolume(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	agg := buildAggregate("congress", "Congress", 10, 4, domain.SourceArticle, domain.Tier1, now)
	res := g.Evaluate(agg, now)

	assert.False(t, res.Passed)
	assert.Equal(t, ReasonSingleWordVolume, res.Reason)
}

func TestEvaluate_MultiWord(t *testing.T) {
	g := New(nil, alias.NewResolver(nil))
	now := time.Now().UTC()

	// two deduped mentions is below the floor
	thin := buildAggregate("senate_rejects_bill", "Senate Rejects Bill", 2, 2, domain.SourceArticle, domain.Tier2, now)
	res := g.Evaluate(thin, now)
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonMultiWordVolume, res.Reason)

	// single news family with enough 24h volume passes
	newsOnly := buildAggregate("senate_rejects_bill", "Senate Rejects Bill", 6, 3, domain.SourceArticle, domain.Tier2, now)
	res = g.Evaluate(newsOnly, now)
	assert.True(t, res.Passed, "failures: %v", res.FailureReasons)

	// two source families passes even with low 24h volume
	mixed := domain.NewTopicAggregate("senate_rejects_bill", "Senate Rejects Bill", true, "")
	mixed.Observe(domain.Mention{ID: "a1", Source: domain.SourceArticle, Tier: domain.Tier2, Domain: "reuters.com", PublishedAt: now, ContentHash: 1})
	mixed.Observe(domain.Mention{ID: "s1", Source: domain.SourceSocial, Tier: domain.Tier3, Domain: domain.SocialDomain, PublishedAt: now, ContentHash: 2})
	mixed.Observe(domain.Mention{ID: "s2", Source: domain.SourceSocial, Tier: domain.Tier3, Domain: domain.SocialDomain, PublishedAt: now, ContentHash: 3})
	res = g.Evaluate(mixed, now)
	assert.True(t, res.Passed, "failures: %v", res.FailureReasons)
}
