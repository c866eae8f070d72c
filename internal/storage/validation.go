package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quillbooks/autocode/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrInvalidCorrection = errors.New("invalid correction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDecision validates a decision before persisting it.
func validateDecision(d *model.Decision) error {
	if d == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidDecision)
	}
	if d.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidDecision)
	}
	if d.ExternalID == "" {
		return fmt.Errorf("%w: missing external transaction ID", ErrInvalidDecision)
	}
	if d.Assignment.Code == "" {
		return fmt.Errorf("%w: missing assignment code", ErrInvalidDecision)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("%w: confidence %.2f outside [0,100]", ErrInvalidDecision, d.Confidence)
	}
	if !d.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidDecision, d.Source)
	}
	switch d.Status {
	case model.StatusAutoApplied, model.StatusReviewRequired:
	case model.StatusFailed:
		// Failed items are never persisted; recording one is a caller bug.
		return fmt.Errorf("%w: FAILED decisions must not be persisted", ErrInvalidDecision)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDecision, d.Status)
	}
	return nil
}

// validateRule validates a rule before persisting it.
func validateRule(r *model.Rule) error {
	if r == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if r.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidRule)
	}
	if r.Signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidRule)
	}
	if r.Assignment.Code == "" {
		return fmt.Errorf("%w: missing assignment code", ErrInvalidRule)
	}
	if r.Boost < 0 {
		return fmt.Errorf("%w: negative boost", ErrInvalidRule)
	}
	return nil
}

// validateCorrection validates a correction before persisting it.
func validateCorrection(c *model.Correction) error {
	if c == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if c.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidCorrection)
	}
	if c.DecisionID == "" {
		return fmt.Errorf("%w: missing decision ID", ErrInvalidCorrection)
	}
	if c.Corrected.Code == "" {
		return fmt.Errorf("%w: missing corrected code", ErrInvalidCorrection)
	}
	if c.CorrectorID == "" {
		return fmt.Errorf("%w: missing corrector identity", ErrInvalidCorrection)
	}
	return nil
}
