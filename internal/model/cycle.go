package model

import "time"

// Outcome classifies the result of evaluating one symbol×timeframe pair.
type Outcome string

const (
	OutcomeSignalSent Outcome = "signal_sent"
	OutcomeFiltered   Outcome = "filtered"
	OutcomeNoData     Outcome = "no_data"
	OutcomeError      Outcome = "error"
)

// CycleResult aggregates one monitoring cycle. It is logged and exposed for
// health checks but never persisted as a single row.
type CycleResult struct {
	CycleID         string        `json:"cycle_id"`
	TotalSymbols    int           `json:"total_symbols"`
	TotalTimeframes int           `json:"total_timeframes"`
	Sent            int           `json:"sent"`
	Filtered        int           `json:"filtered"`
	Errors          int           `json:"errors"`
	NoData          int           `json:"no_data"`
	Duration        time.Duration `json:"duration"`
}

// Add folds a per-pair outcome into the totals.
func (r *CycleResult) Add(o Outcome) {
	switch o {
	case OutcomeSignalSent:
		r.Sent++
	case OutcomeFiltered:
		r.Filtered++
	case OutcomeNoData:
		r.NoData++
	case OutcomeError:
		r.Errors++
	}
}

// Merge folds another result (typically one batch's counters) into this one.
func (r *CycleResult) Merge(other CycleResult) {
	r.Sent += other.Sent
	r.Filtered += other.Filtered
	r.Errors += other.Errors
	r.NoData += other.NoData
}

// Evaluations returns the total number of classified pair evaluations.
func (r *CycleResult) Evaluations() int {
	return r.Sent + r.Filtered + r.Errors + r.NoData
}
