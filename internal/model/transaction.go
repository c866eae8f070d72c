package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TransactionInput is a normalized bank transaction awaiting an
// accounting code. Amounts are integers in minor currency units.
type TransactionInput struct {
	Date         time.Time `json:"date"`
	ExternalID   string    `json:"external_id"`
	Counterparty string    `json:"counterparty"`
	Description  string    `json:"description"`
	AmountCents  int64     `json:"amount_cents"`
}

// Fingerprint creates a stable hash of the normalized input, used for
// duplicate detection and audit correlation.
func (t *TransactionInput) Fingerprint() string {
	data := fmt.Sprintf("%s:%d:%s:%s",
		t.Date.UTC().Format("2006-01-02"),
		t.AmountCents,
		NormalizeSignature(t.Counterparty),
		t.ExternalID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Signature returns the rule-matching signature for this transaction.
// The counterparty name is preferred; the description is the fallback
// for feeds that leave the counterparty blank.
func (t *TransactionInput) Signature() string {
	if sig := NormalizeSignature(t.Counterparty); sig != "" {
		return sig
	}
	return NormalizeSignature(t.Description)
}

// NormalizeSignature canonicalizes free-text counterparty names so that
// "AcMe  Supply #104" and "ACME SUPPLY" produce the same signature.
// Punctuation becomes whitespace, runs of whitespace collapse, and
// trailing all-digit tokens (store and terminal numbers) are dropped.
func NormalizeSignature(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())

	// Strip trailing numeric tokens; they vary per location or terminal.
	for len(tokens) > 1 && isAllDigits(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
