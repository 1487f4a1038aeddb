package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the overall outcome of one sync run
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusSkipped SyncStatus = "skipped"
)

// CollectResult pairs an instrument with the quote collected for it.
// Err is set when the fetch failed and Quote is the degraded placeholder.
type CollectResult struct {
	Instrument Instrument `json:"instrument"`
	Quote      Quote      `json:"quote"`
	Err        error      `json:"-"`
}

// SymbolOutcome records what happened to one symbol during a sync run
type SymbolOutcome struct {
	Symbol string           `json:"symbol"`
	Method ExtractionMethod `json:"extraction_method"`
	Stored bool             `json:"stored"`
	Error  string           `json:"error,omitempty"`
}

// SyncReport summarises one sync run
type SyncReport struct {
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     SyncStatus      `json:"status"`
	Outcomes   []SymbolOutcome `json:"outcomes"`
}

// StoredCount returns how many symbols were upserted
func (r *SyncReport) StoredCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Stored {
			count++
		}
	}
	return count
}

// Duration returns the wall time of the run
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
