// Package gate filters topic aggregates before scoring. Rejections carry a
// machine-readable reason for telemetry; single-word survivors carry explain
// text describing the corroboration that let them through.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulsefeed/trendwatch/internal/alias"
	"github.com/pulsefeed/trendwatch/internal/domain"
)

// Config contains the quality-gate thresholds.
type Config struct {
	SingleWordMinDeduped int `yaml:"single_word_min_deduped"` // ≥20 deduped mentions
	SingleWordMinDomains int `yaml:"single_word_min_domains"` // ≥3 distinct domains
	SingleWordMinNews    int `yaml:"single_word_min_news"`    // ≥3 news-type mentions
	MultiWordMinDeduped  int `yaml:"multi_word_min_deduped"`  // ≥3 deduped mentions
	MultiWordMinNews24h  int `yaml:"multi_word_min_news_24h"` // ≥5 24h mentions when only one news family
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() *Config {
	return &Config{
		SingleWordMinDeduped: 20,
		SingleWordMinDomains: 3,
		SingleWordMinNews:    3,
		MultiWordMinDeduped:  3,
		MultiWordMinNews24h:  5,
	}
}

// Check is the outcome of a single gate predicate.
type Check struct {
	Name        string      `json:"name"`
	Passed      bool        `json:"passed"`
	Value       interface{} `json:"value"`
	Threshold   interface{} `json:"threshold"`
	Description string      `json:"description"`
}

// Result is the full gate evaluation for one topic.
type Result struct {
	Key            string            `json:"key"`
	Passed         bool              `json:"passed"`
	Reason         string            `json:"reason,omitempty"`
	Checks         map[string]*Check `json:"checks"`
	FailureReasons []string          `json:"failure_reasons,omitempty"`
	Explain        string            `json:"explain,omitempty"`
}

// Rejection reason tags, stable for telemetry dashboards.
const (
	ReasonBlocklisted         = "blocklisted"
	ReasonAllWordsBlocklisted = "all_words_blocklisted"
	ReasonSingleWordVolume    = "single_word_low_volume"
	ReasonSingleWordDomains   = "single_word_low_domains"
	ReasonSingleWordNews      = "single_word_no_news"
	ReasonSingleWordNoTier12  = "single_word_no_tier12"
	ReasonMultiWordVolume     = "multi_word_low_volume"
	ReasonMultiWordCorrob     = "multi_word_no_corroboration"
)

// Gate evaluates topic aggregates against the quality thresholds.
type Gate struct {
	cfg     *Config
	aliases *alias.Resolver
}

// New creates a gate. The alias resolver supplies the protected-acronym
// allow-list for the single-word tier check.
func New(cfg *Config, aliases *alias.Resolver) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Gate{cfg: cfg, aliases: aliases}
}

// Evaluate runs every applicable check for one aggregate. The first failing
// check sets the rejection reason; all checks are recorded either way.
func (g *Gate) Evaluate(agg *domain.TopicAggregate, now time.Time) *Result {
	res := &Result{
		Key:    agg.Key,
		Checks: make(map[string]*Check),
	}

	keyLower := strings.ToLower(agg.Key)
	titleLower := strings.ToLower(agg.Title)
	titleWords := strings.Fields(titleLower)

	if isBlocklisted(keyLower) || isBlocklisted(titleLower) {
		g.record(res, &Check{
			Name:        "blocklist",
			Passed:      false,
			Value:       agg.Key,
			Description: fmt.Sprintf("%q is a blocklisted generic", agg.Title),
		}, ReasonBlocklisted)
		return res
	}
	if len(titleWords) > 1 && allBlocklisted(titleWords) {
		g.record(res, &Check{
			Name:        "blocklist_words",
			Passed:      false,
			Value:       agg.Title,
			Description: fmt.Sprintf("every word of %q is blocklisted", agg.Title),
		}, ReasonAllWordsBlocklisted)
		return res
	}

	if len(titleWords) <= 1 {
		g.evaluateSingleWord(res, agg)
	} else {
		g.evaluateMultiWord(res, agg, now)
	}

	res.Passed = len(res.FailureReasons) == 0
	return res
}

func (g *Gate) evaluateSingleWord(res *Result, agg *domain.TopicAggregate) {
	deduped := agg.DedupedCount()
	g.record(res, &Check{
		Name:        "single_word_volume",
		Passed:      deduped >= g.cfg.SingleWordMinDeduped,
		Value:       deduped,
		Threshold:   g.cfg.SingleWordMinDeduped,
		Description: fmt.Sprintf("deduped mentions %d ≥ %d", deduped, g.cfg.SingleWordMinDeduped),
	}, ReasonSingleWordVolume)

	protected := g.aliases != nil && g.aliases.IsProtectedAcronym(agg.Key)
	tierOK := agg.HasTier12() || protected
	desc := "tier1/tier2 corroboration present"
	if !agg.HasTier12() && protected {
		desc = "protected acronym, tier check waived"
	}
	g.record(res, &Check{
		Name:        "single_word_tier12",
		Passed:      tierOK,
		Value:       agg.HasTier12(),
		Threshold:   true,
		Description: desc,
	}, ReasonSingleWordNoTier12)

	domains := agg.DistinctDomains()
	g.record(res, &Check{
		Name:        "single_word_domains",
		Passed:      domains >= g.cfg.SingleWordMinDomains,
		Value:       domains,
		Threshold:   g.cfg.SingleWordMinDomains,
		Description: fmt.Sprintf("distinct domains %d ≥ %d", domains, g.cfg.SingleWordMinDomains),
	}, ReasonSingleWordDomains)

	news := agg.NewsDeduped()
	g.record(res, &Check{
		Name:        "single_word_news",
		Passed:      news >= g.cfg.SingleWordMinNews,
		Value:       news,
		Threshold:   g.cfg.SingleWordMinNews,
		Description: fmt.Sprintf("news mentions %d ≥ %d", news, g.cfg.SingleWordMinNews),
	}, ReasonSingleWordNews)

	if len(res.FailureReasons) == 0 {
		res.Explain = fmt.Sprintf(
			"single-word %q passed: %d deduped across %d domains, %d news, tier12=%t protected=%t",
			agg.Title, deduped, domains, news, agg.HasTier12(), protected,
		)
	}
}

func (g *Gate) evaluateMultiWord(res *Result, agg *domain.TopicAggregate, now time.Time) {
	deduped := agg.DedupedCount()
	g.record(res, &Check{
		Name:        "multi_word_volume",
		Passed:      deduped >= g.cfg.MultiWordMinDeduped,
		Value:       deduped,
		Threshold:   g.cfg.MultiWordMinDeduped,
		Description: fmt.Sprintf("deduped mentions %d ≥ %d", deduped, g.cfg.MultiWordMinDeduped),
	}, ReasonMultiWordVolume)

	_, _, c24h := agg.WindowCounts(now)
	families := agg.SourceFamilies()
	corroborated := families >= 2 || (agg.NewsDeduped() >= 1 && c24h >= g.cfg.MultiWordMinNews24h)
	g.record(res, &Check{
		Name:      "multi_word_corroboration",
		Passed:    corroborated,
		Value:     families,
		Threshold: 2,
		Description: fmt.Sprintf("source families %d ≥ 2 or news with %d ≥ %d in 24h",
			families, c24h, g.cfg.MultiWordMinNews24h),
	}, ReasonMultiWordCorrob)
}

// record stores a check and, on failure, appends the reason. The first
// failure becomes the result's reject reason.
func (g *Gate) record(res *Result, c *Check, reason string) {
	res.Checks[c.Name] = c
	if c.Passed {
		return
	}
	if res.Reason == "" {
		res.Reason = reason
	}
	res.FailureReasons = append(res.FailureReasons, fmt.Sprintf("%s: %s", reason, c.Description))
}

func allBlocklisted(words []string) bool {
	for _, w := range words {
		if !isBlocklisted(w) {
			return false
		}
	}
	return true
}
