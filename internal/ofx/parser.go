// Package ofx ingests OFX/QFX statement files and produces normalized
// transaction inputs for the decision pipeline.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/quillbooks/autocode/internal/model"
)

// Parser reads OFX/QFX statement files.
type Parser struct{}

// NewParser creates an OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes formatting quirks seen in real bank exports before
// handing the content to ofxgo: leading blank lines, mixed-case
// SEVERITY values, and SGML tags missing their closing bracket.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}

// ParseFile parses an OFX/QFX file into transaction inputs. Bank and
// credit card statements are both supported; response messages of any
// other kind are ignored.
func (p *Parser) ParseFile(reader io.Reader) ([]model.TransactionInput, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var inputs []model.TransactionInput
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, tx := range stmt.BankTranList.Transactions {
				inputs = append(inputs, p.convert(tx))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, tx := range stmt.BankTranList.Transactions {
				inputs = append(inputs, p.convert(tx))
			}
		}
	}

	slog.Info("parsed OFX file",
		"transactions", len(inputs),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return inputs, nil
}

// convert maps one OFX transaction to a pipeline input. The OFX FITID
// becomes the external transaction ID, which is what makes replayed
// imports idempotent downstream.
func (p *Parser) convert(tx ofxgo.Transaction) model.TransactionInput {
	return model.TransactionInput{
		Date:         tx.DtPosted.Time,
		ExternalID:   string(tx.FiTID),
		Counterparty: extractCounterparty(tx),
		Description:  strings.TrimSpace(string(tx.Memo)),
		AmountCents:  ratToCents(&tx.TrnAmt.Rat),
	}
}

// ratToCents converts an OFX decimal amount to signed minor units,
// rounding half away from zero. OFX reports debits as negative and the
// pipeline keeps that sign.
func ratToCents(amount *big.Rat) int64 {
	cents := new(big.Rat).Mul(amount, big.NewRat(100, 1))

	num := new(big.Int).Set(cents.Num())
	denom := cents.Denom()

	quo, rem := new(big.Int).QuoRem(num, denom, new(big.Int))

	// Round half away from zero on any fractional remainder.
	rem.Abs(rem)
	rem.Mul(rem, big.NewInt(2))
	if rem.Cmp(denom) >= 0 {
		if cents.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}

	return quo.Int64()
}

// Prefixes banks prepend to card transaction names.
var counterpartyPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractCounterparty pulls the cleanest available counterparty name
// out of an OFX transaction. PAYEE is preferred; MEMO replaces a
// generic NAME field.
func extractCounterparty(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range counterpartyPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date stamps some banks embed.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
