package model

import "time"

// DecisionSource indicates which path produced a decision's assignment.
type DecisionSource string

// Decision source constants.
const (
	// SourcePattern means a learned rule resolved the item without inference.
	SourcePattern DecisionSource = "pattern"
	// SourceInference means the inference subsystem alone produced the assignment.
	SourceInference DecisionSource = "inference"
	// SourceHybrid means inference agreed with a rule and received its boost.
	SourceHybrid DecisionSource = "hybrid"
)

// Valid reports whether the source is one of the closed set.
func (s DecisionSource) Valid() bool {
	switch s {
	case SourcePattern, SourceInference, SourceHybrid:
		return true
	}
	return false
}

// RoutingStatus indicates the outcome of routing one transaction.
type RoutingStatus string

// Routing status constants.
const (
	// StatusAutoApplied means confidence met the threshold; no review needed.
	StatusAutoApplied RoutingStatus = "AUTO_APPLIED"
	// StatusReviewRequired means the decision is persisted but queued for a human.
	StatusReviewRequired RoutingStatus = "REVIEW_REQUIRED"
	// StatusFailed means inference or validation failed; nothing was persisted.
	StatusFailed RoutingStatus = "FAILED"
)

// Decision is one categorization attempt for one transaction.
// The rationale is immutable once written; corrections annotate the
// decision but never edit it, and decisions are never hard-deleted.
type Decision struct {
	CreatedAt   time.Time       `json:"created_at"`
	WasCorrect  *bool           `json:"was_correct,omitempty"`
	CorrectedTo *CodeAssignment `json:"corrected_to,omitempty"`
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ExternalID  string          `json:"external_id"`
	Fingerprint string          `json:"fingerprint"`
	Counterparty string         `json:"counterparty"`
	Rationale   string          `json:"rationale"`
	Source      DecisionSource  `json:"source"`
	Status      RoutingStatus   `json:"status"`
	Splits      []SplitLine     `json:"splits,omitempty"`
	Assignment  CodeAssignment  `json:"assignment"`
	Confidence  float64         `json:"confidence"`
	AmountCents int64           `json:"amount_cents"`
}
