package domain

// RollingBaseline carries per-topic historical hourly-rate statistics
// computed from persisted daily rollups, excluding today.
type RollingBaseline struct {
	Key           string
	Baseline7d    float64
	Baseline30d   float64
	StdDev7d      float64
	DataPoints7d  int
	DataPoints30d int
}

// HasHistory reports whether enough daily datapoints exist in the 7-day
// window for the z-score to use the historical standard deviation.
func (b RollingBaseline) HasHistory() bool { return b.DataPoints7d >= 3 }

// Quality is the multiplier applied to velocity terms when the baseline is
// thin: full weight with history, reduced without.
func (b RollingBaseline) Quality() float64 {
	if b.HasHistory() {
		return 1.0
	}
	return 0.6
}
