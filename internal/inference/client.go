// Package inference provides clients for the categorization inference
// subsystem. It supports multiple providers with rate limiting and
// caller-supplied timeouts.
package inference

import (
	"context"
	"errors"
	"time"

	"github.com/quillbooks/autocode/internal/model"
)

// Inference errors. Callers distinguish timeouts from other failures so
// the router can report them separately.
var (
	// ErrTimeout indicates the inference call exceeded its deadline.
	ErrTimeout = errors.New("inference timed out")
	// ErrUnavailable indicates the inference subsystem could not be reached.
	ErrUnavailable = errors.New("inference subsystem unavailable")
	// ErrMalformedResponse indicates the subsystem answered with output we could not parse.
	ErrMalformedResponse = errors.New("malformed inference response")
)

// Request carries one normalized transaction to the inference subsystem.
type Request struct {
	Date         time.Time
	TenantID     string
	Counterparty string
	Description  string
	AmountCents  int64
}

// Result contains the inference subsystem's candidate assignment.
// Confidence is a score in [0,100].
type Result struct {
	Assignment model.CodeAssignment
	Splits     []model.SplitLine
	Rationale  string
	Confidence float64
}

// Client defines the interface for inference providers.
type Client interface {
	Infer(ctx context.Context, req Request) (Result, error)
}

// Config holds provider configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	RateLimit   int
	MaxTokens   int
	Temperature float64
}
