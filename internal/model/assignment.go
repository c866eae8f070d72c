// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// CodeAssignment is a candidate accounting output for a transaction.
// Code is the top-level account code; SubCode refines it within the
// same account family.
type CodeAssignment struct {
	Code         string `json:"code"`
	SubCode      string `json:"sub_code,omitempty"`
	TaxTreatment string `json:"tax_treatment,omitempty"`
}

// Equal reports whether two assignments are identical in every field.
func (a CodeAssignment) Equal(other CodeAssignment) bool {
	return a.Code == other.Code &&
		a.SubCode == other.SubCode &&
		a.TaxTreatment == other.TaxTreatment
}

// SameCategory reports whether both assignments share the top-level code.
func (a CodeAssignment) SameCategory(other CodeAssignment) bool {
	return a.Code == other.Code
}

// String renders the assignment for logs and CLI output.
func (a CodeAssignment) String() string {
	if a.SubCode != "" {
		return fmt.Sprintf("%s/%s", a.Code, a.SubCode)
	}
	return a.Code
}

// SplitLine allocates part of a transaction amount to an assignment.
// Amounts are integers in minor currency units.
type SplitLine struct {
	Assignment  CodeAssignment `json:"assignment"`
	AmountCents int64          `json:"amount_cents"`
}

// SplitTolerance is the largest acceptable difference, in minor units,
// between the sum of split lines and the transaction total.
const SplitTolerance = 1

// ValidateSplits checks that split lines account for the full
// transaction amount within SplitTolerance. A nil or empty slice is
// valid: the decision is then a single whole-amount assignment.
func ValidateSplits(splits []SplitLine, totalCents int64) error {
	if len(splits) == 0 {
		return nil
	}

	var sum int64
	for _, line := range splits {
		sum += line.AmountCents
	}

	diff := sum - totalCents
	if diff < 0 {
		diff = -diff
	}
	if diff > SplitTolerance {
		return fmt.Errorf("split amounts sum to %d but transaction total is %d (difference %d exceeds tolerance %d)",
			sum, totalCents, diff, SplitTolerance)
	}
	return nil
}
