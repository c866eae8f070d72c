package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantCode       string
		wantConfidence float64
		wantSplits     int
		wantErr        bool
	}{
		{
			name:           "clean JSON",
			content:        `{"code":"5200","sub_code":"10","confidence":92,"rationale":"Office supplies from a known vendor."}`,
			wantCode:       "5200",
			wantConfidence: 92,
		},
		{
			name: "markdown fenced JSON",
			content: "```json\n" +
				`{"code":"6100","confidence":70,"rationale":"Likely software."}` +
				"\n```",
			wantCode:       "6100",
			wantConfidence: 70,
		},
		{
			name:           "prose around the object",
			content:        `Here is the result: {"code":"5400","confidence":55,"rationale":"Travel."} Hope that helps!`,
			wantCode:       "5400",
			wantConfidence: 55,
		},
		{
			name:           "confidence above range is clamped",
			content:        `{"code":"5200","confidence":140,"rationale":"x"}`,
			wantCode:       "5200",
			wantConfidence: 100,
		},
		{
			name:           "negative confidence is clamped",
			content:        `{"code":"5200","confidence":-3,"rationale":"x"}`,
			wantCode:       "5200",
			wantConfidence: 0,
		},
		{
			name:           "splits parsed",
			content:        `{"code":"5200","confidence":88,"splits":[{"code":"5200","amount_cents":6000},{"code":"5400","amount_cents":4000}]}`,
			wantCode:       "5200",
			wantConfidence: 88,
			wantSplits:     2,
		},
		{
			name:    "missing code",
			content: `{"confidence":90,"rationale":"no code"}`,
			wantErr: true,
		},
		{
			name:    "not JSON at all",
			content: "I cannot categorize this transaction.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, result.Assignment.Code)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 0.001)
			assert.Len(t, result.Splits, tt.wantSplits)
		})
	}
}

func TestStripMarkdownFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("{\"a\":1}"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("noise {\"a\":1} noise"))
}
