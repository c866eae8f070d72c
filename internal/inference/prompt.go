package inference

import (
	"fmt"
	"strings"
)

// buildPrompt renders one transaction into the categorization prompt.
// The response contract is a bare JSON object so the parser never has
// to guess at surrounding prose.
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Assign an accounting code to this bank transaction.\n\n")
	fmt.Fprintf(&b, "Counterparty: %s\n", req.Counterparty)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	fmt.Fprintf(&b, "Amount (minor units): %d\n", req.AmountCents)
	if !req.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", req.Date.Format("2006-01-02"))
	}

	b.WriteString(`
Respond with ONLY a JSON object in this exact shape:
{
  "code": "<top-level account code>",
  "sub_code": "<sub code or empty>",
  "tax_treatment": "<tax treatment or empty>",
  "confidence": <0-100>,
  "rationale": "<one or two sentences explaining the assignment>",
  "splits": [{"code": "...", "sub_code": "...", "amount_cents": <n>}]
}
Omit "splits" unless the transaction genuinely covers multiple codes.
`)

	return b.String()
}

const systemPrompt = "You are a financial transaction coding assistant. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any " +
	"explanatory text, markdown formatting, or commentary before or after " +
	"the JSON. Start your response directly with { and end with }."
