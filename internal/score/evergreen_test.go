package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

func TestIsEvergreen(t *testing.T) {
	assert.True(t, isEvergreen("trump", domain.RollingBaseline{}, true), "static set membership")

	// stable high baseline
	stable := domain.RollingBaseline{Baseline7d: 2.2, Baseline30d: 2.0}
	assert.True(t, isEvergreen("some_topic", stable, false))

	// high but unstable baseline is a real story, not evergreen
	unstable := domain.RollingBaseline{Baseline7d: 5.0, Baseline30d: 2.0}
	assert.False(t, isEvergreen("some_topic", unstable, false))

	// single-word topics use looser thresholds
	loose := domain.RollingBaseline{Baseline7d: 0.9, Baseline30d: 1.1}
	assert.True(t, isEvergreen("someword", loose, true))
	assert.False(t, isEvergreen("some_topic", loose, false))

	assert.False(t, isEvergreen("fresh_story", domain.RollingBaseline{Baseline7d: 0.1}, false))
}

func TestEvergreenPenalty(t *testing.T) {
	// neither evergreen nor single-word entity
	assert.Equal(t, 1.0, evergreenPenalty(false, false, true, 9))

	// single-word entity base penalty
	assert.Equal(t, 0.15, evergreenPenalty(false, true, true, 9))

	// evergreen ladder by z
	assert.InDelta(t, 0.80, evergreenPenalty(true, false, true, 8), 1e-9)
	assert.InDelta(t, 0.55, evergreenPenalty(true, false, true, 6.5), 1e-9)
	assert.InDelta(t, 0.35, evergreenPenalty(true, false, true, 5.2), 1e-9)
	assert.InDelta(t, 0.20, evergreenPenalty(true, false, true, 4), 1e-9)

	// evergreen without a significant spike
	assert.Equal(t, 0.05, evergreenPenalty(true, false, true, 0.5))
	assert.Equal(t, 0.08, evergreenPenalty(true, false, false, 0.5))

	// evergreen single-word entity stacks the base
	assert.InDelta(t, 0.15*0.80, evergreenPenalty(true, true, true, 8), 1e-9)
	assert.Equal(t, 0.05, evergreenPenalty(true, true, true, 1), "no-spike floor ignores the base")
}
