package logger

import (
	"sync"

	"github.com/google/uuid"
)

// RunTrace records per-run cost and per-listing step traces. It is a thin
// collaborator: it never influences pricing decisions, it only makes them
// auditable. Safe for concurrent use by batch workers.
type RunTrace struct {
	RunID string

	log *Log

	mu        sync.Mutex
	costEUR   float64
	budgetEUR float64
	steps     map[string][]string
}

// NewRunTrace starts a trace for one batch run. A budget of zero means
// unlimited.
func NewRunTrace(log *Log, budgetEUR float64) *RunTrace {
	return &RunTrace{
		RunID:     uuid.NewString(),
		log:       log,
		budgetEUR: budgetEUR,
		steps:     make(map[string][]string),
	}
}

// Step records one pipeline step for a listing.
func (t *RunTrace) Step(listingID, step string) {
	t.mu.Lock()
	t.steps[listingID] = append(t.steps[listingID], step)
	t.mu.Unlock()

	t.log.WithFields(Fields{"run_id": t.RunID, "listing_id": listingID, "step": step}).
		Debug("pipeline step")
}

// AddCost accumulates extraction spend for a listing.
func (t *RunTrace) AddCost(listingID string, costEUR float64) {
	t.mu.Lock()
	t.costEUR += costEUR
	t.mu.Unlock()

	t.log.WithFields(Fields{"run_id": t.RunID, "listing_id": listingID, "cost_eur": costEUR}).
		Debug("extraction cost")
}

// BudgetExceeded reports whether the run-level cost budget is spent. Checked
// between listings; nothing is interrupted mid-computation.
func (t *RunTrace) BudgetExceeded() bool {
	if t.budgetEUR <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costEUR >= t.budgetEUR
}

// TotalCost returns the accumulated spend so far.
func (t *RunTrace) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costEUR
}

// Steps returns a copy of the recorded steps for a listing.
func (t *RunTrace) Steps(listingID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.steps[listingID]))
	copy(out, t.steps[listingID])
	return out
}
