package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillbooks/autocode/internal/model"
)

// parseResult extracts an inference result from raw model output.
// Models occasionally wrap the JSON in markdown fences despite the
// system prompt; strip those before unmarshaling.
func parseResult(content string) (Result, error) {
	content = stripMarkdownFences(content)

	var payload struct {
		Code         string  `json:"code"`
		SubCode      string  `json:"sub_code"`
		TaxTreatment string  `json:"tax_treatment"`
		Confidence   float64 `json:"confidence"`
		Rationale    string  `json:"rationale"`
		Splits       []struct {
			Code         string `json:"code"`
			SubCode      string `json:"sub_code"`
			TaxTreatment string `json:"tax_treatment"`
			AmountCents  int64  `json:"amount_cents"`
		} `json:"splits"`
	}

	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if payload.Code == "" {
		return Result{}, fmt.Errorf("%w: no code in response", ErrMalformedResponse)
	}

	// Clamp rather than reject: off-by-rounding scores from the model
	// should not fail the whole item.
	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	result := Result{
		Assignment: model.CodeAssignment{
			Code:         payload.Code,
			SubCode:      payload.SubCode,
			TaxTreatment: payload.TaxTreatment,
		},
		Confidence: confidence,
		Rationale:  strings.TrimSpace(payload.Rationale),
	}

	for _, split := range payload.Splits {
		result.Splits = append(result.Splits, model.SplitLine{
			Assignment: model.CodeAssignment{
				Code:         split.Code,
				SubCode:      split.SubCode,
				TaxTreatment: split.TaxTreatment,
			},
			AmountCents: split.AmountCents,
		})
	}

	return result, nil
}

// stripMarkdownFences removes a surrounding ```json ... ``` block and
// trims anything before the first { or after the last }.
func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	return strings.TrimSpace(content)
}
