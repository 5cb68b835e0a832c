package detect

import "time"

// guard tracks the wall-clock budget for one run. Phases consult it before
// starting; persistence consults it between batches.
type guard struct {
	start  time.Time
	budget time.Duration
	now    func() time.Time
}

func newGuard(start time.Time, budget time.Duration, now func() time.Time) *guard {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &guard{start: start, budget: budget, now: now}
}

func (g *guard) elapsed() time.Duration {
	return g.now().Sub(g.start)
}

func (g *guard) exceeded() bool {
	return g.elapsed() >= g.budget
}

func (g *guard) remaining() time.Duration {
	rem := g.budget - g.elapsed()
	if rem < 0 {
		return 0
	}
	return rem
}
