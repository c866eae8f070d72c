package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "uppercase and trim",
			raw:  "  acme supply  ",
			want: "ACME SUPPLY",
		},
		{
			name: "punctuation becomes whitespace",
			raw:  "ACME-SUPPLY, INC.",
			want: "ACME SUPPLY INC",
		},
		{
			name: "trailing store number dropped",
			raw:  "Acme Supply #104",
			want: "ACME SUPPLY",
		},
		{
			name: "multiple trailing numeric tokens dropped",
			raw:  "ACME SUPPLY 104 9921",
			want: "ACME SUPPLY",
		},
		{
			name: "embedded digits kept",
			raw:  "7-Eleven",
			want: "7 ELEVEN",
		},
		{
			name: "all numeric input kept",
			raw:  "1234",
			want: "1234",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSignature(tt.raw))
		})
	}
}

func TestTransactionInput_Signature(t *testing.T) {
	txn := TransactionInput{Counterparty: "Acme Supply #12", Description: "card purchase"}
	assert.Equal(t, "ACME SUPPLY", txn.Signature())

	// Falls back to the description when the counterparty is blank.
	txn = TransactionInput{Description: "ACH payment: payroll"}
	assert.Equal(t, "ACH PAYMENT PAYROLL", txn.Signature())
}

func TestTransactionInput_Fingerprint(t *testing.T) {
	date := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a := TransactionInput{Date: date, ExternalID: "tx-1", Counterparty: "Acme Supply", AmountCents: 1250}
	b := TransactionInput{Date: date, ExternalID: "tx-1", Counterparty: "ACME SUPPLY #99", AmountCents: 1250}
	c := TransactionInput{Date: date, ExternalID: "tx-2", Counterparty: "Acme Supply", AmountCents: 1250}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "normalized counterparties should collide")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint(), "different external IDs should not collide")
	assert.Len(t, a.Fingerprint(), 64)
}
