package domain

import "time"

// OutcomeKind classifies one item's fate within a run.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// ItemOutcome is the per-item result reported in the run summary.
type ItemOutcome struct {
	Fingerprint string      `json:"fingerprint"`
	Title       string      `json:"title"`
	Kind        OutcomeKind `json:"kind"`
	Stage       string      `json:"stage,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	ArtifactRef string      `json:"artifact_ref,omitempty"`
	Attempts    int         `json:"attempts,omitempty"`
}

// RunSummary aggregates one orchestrator run. Individual item failures never
// fail the run; they are reported here instead.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Fetched    int           `json:"fetched"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Items      []ItemOutcome `json:"items"`
}
