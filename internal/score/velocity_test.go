package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

func TestZScore_Historical(t *testing.T) {
	bl := domain.RollingBaseline{Baseline7d: 0.1, StdDev7d: 0.2, DataPoints7d: 5}

	assert.Equal(t, 10.0, zScore(4, bl), "49x spike clamps to the ceiling")
	assert.Equal(t, -2.0, zScore(0, domain.RollingBaseline{Baseline7d: 5, StdDev7d: 1, DataPoints7d: 7}), "dips clamp at the floor")

	bl = domain.RollingBaseline{Baseline7d: 2.5, StdDev7d: 1.0, DataPoints7d: 7}
	assert.InDelta(t, 0.5, zScore(3, bl), 1e-9)
}

func TestZScore_PoissonFallback(t *testing.T) {
	// no history: conservative baseline max(0.5, 9/3)=3, sd sqrt(3)
	z := zScore(9, domain.RollingBaseline{})
	assert.InDelta(t, ((9.0-3.0)/1.7320508)*0.6, z, 1e-6)

	// thin history but zero std dev also falls back, at full quality
	bl := domain.RollingBaseline{Baseline7d: 1, StdDev7d: 0, DataPoints7d: 5}
	z = zScore(9, bl)
	assert.InDelta(t, (9.0-3.0)/1.7320508, z, 1e-6)
}

func TestVelocityPct(t *testing.T) {
	assert.InDelta(t, 100.0, velocityPct(2, 1), 1e-9)
	assert.InDelta(t, -50.0, velocityPct(1, 2), 1e-9)
	assert.InDelta(t, 150.0, velocityPct(3, 0), 1e-9, "zero baseline falls back to current x50")
}

func TestAccelerationPct(t *testing.T) {
	assert.InDelta(t, 140.0, accelerationPct(4, 10), 0.1)
	assert.Equal(t, 0.0, accelerationPct(3, 0), "empty 6h window yields zero, not a division")
	assert.InDelta(t, -60.0, accelerationPct(2, 30), 1e-9)
}

func TestRecencyDecay(t *testing.T) {
	tests := []struct {
		hours float64
		want  float64
	}{
		{0, 1.0},
		{2, 1.0},
		{7, 0.75},
		{12, 0.5},
		{18, 0.4},
		{24, 0.3},
		{48, 0.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, recencyDecay(tt.hours), 1e-9, "h=%v", tt.hours)
	}
}

func TestHourlyStats(t *testing.T) {
	var hist [24]int
	avg, sd := hourlyStats(hist)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, 0.0, sd)

	hist[0] = 24
	avg, sd = hourlyStats(hist)
	assert.InDelta(t, 1.0, avg, 1e-9)
	assert.Greater(t, sd, 4.0, "a single-bucket burst has high hourly deviation")
}

func TestEffectiveCurrent1h(t *testing.T) {
	assert.Equal(t, 4, effectiveCurrent1h(4, 10, 2, 2, 1))
	assert.Equal(t, 5, effectiveCurrent1h(0, 10, 2, 2, 3), "6h proxy: ceil(10/2)")
	assert.Equal(t, 3, effectiveCurrent1h(0, 5, 2, 1, 3.9), "ceil(5/2)")
	assert.Equal(t, 5, effectiveCurrent1h(0, 2, 4, 3, 1), "source proxy capped at 5")
	assert.Equal(t, 0, effectiveCurrent1h(0, 4, 2, 1, 5), "no proxy applies")
}
