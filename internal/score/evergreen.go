package score

import (
	"math"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

// evergreenKeys are canonical keys with persistently high baseline rates.
// Spikes on these must be far above normal before they surface.
var evergreenKeys = map[string]bool{
	"trump":           true,
	"donald_trump":    true,
	"biden":           true,
	"joe_biden":       true,
	"kamala_harris":   true,
	"congress":        true,
	"senate":          true,
	"house":           true,
	"white_house":     true,
	"supreme_court":   true,
	"republican_party": true,
	"democratic_party": true,
	"united_states":   true,
	"ukraine":         true,
	"russia":          true,
	"china":           true,
	"israel":          true,
	"gaza":            true,
	"iran":            true,
	"economy":         true,
	"inflation":       true,
	"immigration":     true,
	"border":          true,
	"climate_change":  true,
	"covid":           true,
	"abortion":        true,
	"gun_control":     true,
	"crime":           true,
	"election":        true,
	"taxes":           true,
	"healthcare":      true,
	"education":       true,
	"police":          true,
	"military":        true,
	"stock_market":    true,
	"federal_reserve": true,
	"bitcoin":         true,
	"artificial_intelligence": true,
}

// isEvergreen fires on the static set, or on a stable high baseline. Single
// word topics use looser thresholds since they churn constantly.
func isEvergreen(key string, b domain.RollingBaseline, singleWord bool) bool {
	if evergreenKeys[key] {
		return true
	}

	minB30, minB7, maxRatio := 2.0, 1.5, 0.3
	if singleWord {
		minB30, minB7, maxRatio = 1.0, 0.8, 0.5
	}
	if b.Baseline30d >= minB30 && b.Baseline7d >= minB7 {
		stability := math.Abs(b.Baseline7d-b.Baseline30d) / math.Max(b.Baseline30d, 0.1)
		return stability < maxRatio
	}
	return false
}

// evergreenPenalty is the multiplicative factor dampening evergreen topics
// and bare single-word entities. Only a large z-score claws the factor back.
func evergreenPenalty(evergreen, singleWordEntity, hasHistory bool, z float64) float64 {
	base := 1.0
	if singleWordEntity {
		base = 0.15
	}
	if !evergreen {
		return base
	}
	switch {
	case z >= 8:
		return base * 0.80
	case z >= 6:
		return base * 0.55
	case z >= 5:
		return base * 0.35
	case z >= 4:
		return base * 0.20
	}
	if hasHistory {
		return 0.05
	}
	return 0.08
}
