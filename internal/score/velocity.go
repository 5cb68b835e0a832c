package score

import (
	"math"

	"github.com/pulsefeed/trendwatch/internal/domain"
)

// z-scores are clamped so one topic cannot dominate the ranking and mild
// dips do not bury a topic forever.
const (
	zMin = -2.0
	zMax = 10.0
)

// zScore measures how far the current hourly rate sits above the historical
// baseline. With ≥3 days of 7d history and a positive std dev the classic
// formula applies; otherwise a conservative Poisson approximation stands in.
func zScore(current1h int, b domain.RollingBaseline) float64 {
	c := float64(current1h)

	if b.HasHistory() && b.StdDev7d > 0 {
		return clamp((c-b.Baseline7d)/b.StdDev7d, zMin, zMax)
	}

	conservative := math.Max(0.5, c/3)
	sd := math.Sqrt(math.Max(1, conservative))
	return clamp(((c-conservative)/sd)*b.Quality(), zMin, zMax)
}

// velocityPct is the percentage change of the current rate against a
// baseline rate, with an explicit branch for an empty baseline.
func velocityPct(current float64, baseline float64) float64 {
	if baseline == 0 {
		return current * 50
	}
	return ((current - baseline) / baseline) * 100
}

// accelerationPct compares the 1h rate against the trailing 6h hourly rate.
func accelerationPct(current1h, current6h int) float64 {
	rate6h := float64(current6h) / 6
	if rate6h == 0 {
		return 0
	}
	return ((float64(current1h) - rate6h) / rate6h) * 100
}

// recencyDecay fades a topic as its newest mention ages: full weight for two
// hours, half weight at twelve, floor of 0.3 past a day.
func recencyDecay(hoursSinceLastSeen float64) float64 {
	h := hoursSinceLastSeen
	switch {
	case h <= 2:
		return 1.0
	case h <= 12:
		return 1.0 - 0.5*(h-2)/10
	case h <= 24:
		return 0.5 - 0.2*(h-12)/12
	default:
		return 0.3
	}
}

// hourlyStats returns mean and standard deviation over a 24-bucket hourly
// histogram, used for the daily baseline rollup.
func hourlyStats(hist [24]int) (avg, stdDev float64) {
	sum := 0
	for _, n := range hist {
		sum += n
	}
	avg = float64(sum) / 24

	var variance float64
	for _, n := range hist {
		d := float64(n) - avg
		variance += d * d
	}
	variance /= 24
	return avg, math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
