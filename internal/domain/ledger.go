package domain

import "time"

// LedgerStatus enumerates the per-fingerprint processing outcomes the ledger
// tracks across runs.
type LedgerStatus string

const (
	StatusPending   LedgerStatus = "pending"
	StatusSucceeded LedgerStatus = "succeeded"
	StatusFailed    LedgerStatus = "failed"
)

// LedgerEntry is the durable record of one fingerprint's processing history.
// Owned exclusively by the ledger; mutated only through pipeline completion.
type LedgerEntry struct {
	Fingerprint   string       `json:"fingerprint"`
	Status        LedgerStatus `json:"status"`
	Stage         string       `json:"stage,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	LastAttemptAt time.Time    `json:"last_attempt_at"`
	AttemptCount  int          `json:"attempt_count"`
	ArtifactRef   string       `json:"artifact_ref,omitempty"`
}
