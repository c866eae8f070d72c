package ofx

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>Info
</STATUS>
<DTSERVER>20260301120000
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>000123
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301
<DTEND>20260331
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260314
<TRNAMT>-45.67
<FITID>TXN-1001
<NAME>POS PURCHASE ACME SUPPLY #104
<MEMO>hardware purchase
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260315
<TRNAMT>1250.00
<FITID>TXN-1002
<NAME>PAYROLL DEPOSIT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1204.33
<DTASOF>20260331
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestParseFile(t *testing.T) {
	parser := NewParser()

	inputs, err := parser.ParseFile(strings.NewReader(sampleOFX))
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	first := inputs[0]
	assert.Equal(t, "TXN-1001", first.ExternalID)
	assert.Equal(t, "ACME SUPPLY #104", first.Counterparty, "bank prefix is stripped")
	assert.Equal(t, "hardware purchase", first.Description)
	assert.Equal(t, int64(-4567), first.AmountCents)
	assert.Equal(t, 2026, first.Date.Year())

	second := inputs[1]
	assert.Equal(t, "TXN-1002", second.ExternalID)
	assert.Equal(t, "PAYROLL DEPOSIT", second.Counterparty)
	assert.Equal(t, int64(125000), second.AmountCents)
}

func TestParseFile_RejectsGarbage(t *testing.T) {
	parser := NewParser()
	_, err := parser.ParseFile(strings.NewReader("not an ofx file"))
	assert.Error(t, err)
}

func TestRatToCents(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"-45.67", -4567},
		{"1250.00", 125000},
		{"0.005", 1},
		{"-0.005", -1},
		{"0.004", 0},
		{"19.999", 2000},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			rat, ok := new(big.Rat).SetString(tt.amount)
			require.True(t, ok)
			assert.Equal(t, tt.want, ratToCents(rat))
		})
	}
}

func TestPreprocess(t *testing.T) {
	parser := NewParser()

	fixed := parser.preprocess("\n\n<SEVERITY>Info</SEVERITY>")
	assert.Equal(t, "<SEVERITY>INFO</SEVERITY>", fixed)

	fixed = parser.preprocess("<BANKID\n")
	assert.Equal(t, "<BANKID>\n", fixed)
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("debit"))
	assert.True(t, isGenericDescription("POS TRANSACTION"))
	assert.False(t, isGenericDescription("ACME SUPPLY"))
}
