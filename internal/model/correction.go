package model

import "time"

// Correction records a human override of a decision's assignment.
// Each correction references exactly one decision, and a decision has
// at most one active correction. Immutable once created.
type Correction struct {
	CreatedAt   time.Time      `json:"created_at"`
	TenantID    string         `json:"tenant_id"`
	DecisionID  string         `json:"decision_id"`
	Signature   string         `json:"signature"`
	CorrectorID string         `json:"corrector_id"`
	Reason      string         `json:"reason,omitempty"`
	Original    CodeAssignment `json:"original"`
	Corrected   CodeAssignment `json:"corrected"`
	ID          int64          `json:"id"`
}

// Tenant represents one isolated customer of the pipeline. All
// decisions, rules, corrections and reasoning records are partitioned
// by tenant.
type Tenant struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
}
