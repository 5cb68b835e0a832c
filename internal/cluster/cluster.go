// Package cluster groups topic keys whose meanings coincide: first by cosine
// similarity of embeddings carried over from prior trend events, then by text
// similarity for the leftovers. Each cluster elects a canonical label with a
// strong preference for event phrases.
package cluster

import (
	"sort"
	"strings"

	"github.com/pulsefeed/trendwatch/internal/domain"
	"github.com/pulsefeed/trendwatch/internal/phrase"
)

// Similarity thresholds for the two clustering passes.
const (
	EmbeddingThreshold = 0.82
	TextThreshold      = 0.70

	// eventPhraseBonus added to authority during canonical election so any
	// member event phrase dominates non-event entities at equal volume.
	eventPhraseBonus = 100.0
)

// Cluster is one equivalence class of topic keys.
type Cluster struct {
	CanonicalKey   string
	CanonicalTitle string
	IsEventPhrase  bool

	// Members maps member key to member title; the canonical is included.
	Members map[string]string

	TotalMentions int
	TopAuthority  float64
	Threshold     float64 // threshold of the pass that formed the cluster
}

// MemberKeys returns the member keys sorted for deterministic persistence.
func (c *Cluster) MemberKeys() []string {
	keys := make([]string, 0, len(c.Members))
	for k := range c.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemberTitles returns the member titles in member-key order.
func (c *Cluster) MemberTitles() []string {
	keys := c.MemberKeys()
	titles := make([]string, len(keys))
	for i, k := range keys {
		titles[i] = c.Members[k]
	}
	return titles
}

// Clusterer runs the two-pass grouping over one run's topic aggregates.
type Clusterer struct {
	embeddings map[string][]float64
}

// New creates a clusterer over the prior-event embedding index, keyed by
// canonical topic key.
func New(embeddings map[string][]float64) *Clusterer {
	if embeddings == nil {
		embeddings = map[string][]float64{}
	}
	return &Clusterer{embeddings: embeddings}
}

// Assignments maps every topic key to its cluster after Run.
type Assignments struct {
	Clusters []*Cluster
	byKey    map[string]*Cluster
}

// ClusterFor returns the cluster containing key.
func (a *Assignments) ClusterFor(key string) *Cluster {
	return a.byKey[key]
}

// ClusterID returns the persisted cluster id for a key: the canonical key of
// its cluster when the cluster has at least two members, empty otherwise.
func (a *Assignments) ClusterID(key string) string {
	c := a.byKey[key]
	if c == nil || len(c.Members) < 2 {
		return ""
	}
	return c.CanonicalKey
}

// Run groups the given aggregates. Aggregates are visited in descending
// authority order so cluster anchors are the strongest stories.
func (c *Clusterer) Run(topics map[string]*domain.TopicAggregate) *Assignments {
	ordered := make([]*domain.TopicAggregate, 0, len(topics))
	for _, agg := range topics {
		ordered = append(ordered, agg)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Authority != ordered[j].Authority {
			return ordered[i].Authority > ordered[j].Authority
		}
		return ordered[i].Key < ordered[j].Key
	})

	out := &Assignments{byKey: make(map[string]*Cluster, len(topics))}

	// Pass 1: embedding similarity for keys with a prior embedding.
	var leftovers []*domain.TopicAggregate
	for _, agg := range ordered {
		emb, ok := c.embeddings[agg.Key]
		if !ok {
			leftovers = append(leftovers, agg)
			continue
		}
		best, sim := c.bestEmbeddingMatch(out.Clusters, emb)
		if best != nil && sim >= EmbeddingThreshold {
			join(best, agg)
			out.byKey[agg.Key] = best
			continue
		}
		cl := newCluster(agg, EmbeddingThreshold)
		out.Clusters = append(out.Clusters, cl)
		out.byKey[agg.Key] = cl
	}

	// Pass 2: text similarity for everything without an embedding.
	for _, agg := range leftovers {
		best, sim := bestTextMatch(out.Clusters, agg.Title)
		if best != nil && sim >= TextThreshold {
			join(best, agg)
			out.byKey[agg.Key] = best
			continue
		}
		cl := newCluster(agg, TextThreshold)
		out.Clusters = append(out.Clusters, cl)
		out.byKey[agg.Key] = cl
	}

	for _, cl := range out.Clusters {
		overrideToEventPhrase(cl, topics)
	}
	return out
}

func (c *Clusterer) bestEmbeddingMatch(clusters []*Cluster, emb []float64) (*Cluster, float64) {
	var best *Cluster
	bestSim := 0.0
	for _, cl := range clusters {
		for key := range cl.Members {
			other, ok := c.embeddings[key]
			if !ok {
				continue
			}
			if sim := Cosine(emb, other); sim > bestSim {
				best, bestSim = cl, sim
			}
		}
	}
	return best, bestSim
}

func bestTextMatch(clusters []*Cluster, title string) (*Cluster, float64) {
	var best *Cluster
	bestSim := 0.0
	for _, cl := range clusters {
		for _, memberTitle := range cl.Members {
			if sim := TextSimilarity(title, memberTitle); sim > bestSim {
				best, bestSim = cl, sim
			}
		}
	}
	return best, bestSim
}

func newCluster(agg *domain.TopicAggregate, threshold float64) *Cluster {
	return &Cluster{
		CanonicalKey:   agg.Key,
		CanonicalTitle: agg.Title,
		IsEventPhrase:  agg.IsEventPhrase,
		Members:        map[string]string{agg.Key: agg.Title},
		TotalMentions:  agg.DedupedCount(),
		TopAuthority:   electionScore(agg),
		Threshold:      threshold,
	}
}

func join(cl *Cluster, agg *domain.TopicAggregate) {
	cl.Members[agg.Key] = agg.Title
	cl.TotalMentions += agg.DedupedCount()
	if score := electionScore(agg); score > cl.TopAuthority {
		cl.TopAuthority = score
		cl.CanonicalKey = agg.Key
		cl.CanonicalTitle = agg.Title
		cl.IsEventPhrase = agg.IsEventPhrase
	}
}

// electionScore is the authority used for canonical election. The event
// phrase bonus guarantees a member phrase outranks an entity of equal volume.
func electionScore(agg *domain.TopicAggregate) float64 {
	score := agg.Authority
	if agg.IsEventPhrase {
		score += eventPhraseBonus
	}
	return score
}

// overrideToEventPhrase is the safety net after clustering: when the elected
// canonical is not an event phrase but a member is, and that member survives
// verb validation, the member becomes canonical.
func overrideToEventPhrase(cl *Cluster, topics map[string]*domain.TopicAggregate) {
	if cl.IsEventPhrase {
		return
	}
	var bestKey string
	bestScore := -1.0
	for key := range cl.Members {
		agg, ok := topics[key]
		if !ok || !agg.IsEventPhrase {
			continue
		}
		if !phrase.IsEventPhrase(agg.Title) {
			continue
		}
		if agg.Authority > bestScore {
			bestScore = agg.Authority
			bestKey = key
		}
	}
	if bestKey == "" {
		return
	}
	cl.CanonicalKey = bestKey
	cl.CanonicalTitle = cl.Members[bestKey]
	cl.IsEventPhrase = true
}

// TextSimilarity scores two titles: exact match 1.0, containment 0.85, else
// Jaccard over words longer than two characters.
func TextSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return 0
	}
	if la == lb {
		return 1.0
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return 0.85
	}
	return jaccard(significantWords(la), significantWords(lb))
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
