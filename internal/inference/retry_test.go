package inference

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbooks/autocode/internal/model"
	"github.com/quillbooks/autocode/internal/service"
)

func fastRetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestWithRetries_RecoversFromTransientFailure(t *testing.T) {
	attempts := 0
	inner := &MockClient{
		InferFunc: func(context.Context, Request) (Result, error) {
			attempts++
			if attempts < 3 {
				return Result{}, fmt.Errorf("%w: 502", ErrUnavailable)
			}
			return Result{Assignment: model.CodeAssignment{Code: "5200"}, Confidence: 90}, nil
		},
	}

	client := WithRetries(inner, fastRetryOptions())
	result, err := client.Infer(context.Background(), Request{Counterparty: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "5200", result.Assignment.Code)
	assert.Equal(t, 3, attempts)
}

func TestWithRetries_DoesNotRetryMalformedResponse(t *testing.T) {
	attempts := 0
	inner := &MockClient{
		InferFunc: func(context.Context, Request) (Result, error) {
			attempts++
			return Result{}, fmt.Errorf("%w: missing code", ErrMalformedResponse)
		},
	}

	client := WithRetries(inner, fastRetryOptions())
	_, err := client.Infer(context.Background(), Request{Counterparty: "Acme"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 1, attempts)
}

func TestWithRetries_DoesNotRetryTimeout(t *testing.T) {
	attempts := 0
	inner := &MockClient{
		InferFunc: func(context.Context, Request) (Result, error) {
			attempts++
			return Result{}, ErrTimeout
		},
	}

	client := WithRetries(inner, fastRetryOptions())
	_, err := client.Infer(context.Background(), Request{Counterparty: "Acme"})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, attempts)
}

func TestWithRetries_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	inner := &MockClient{
		InferFunc: func(context.Context, Request) (Result, error) {
			attempts++
			return Result{}, fmt.Errorf("%w: 502", ErrUnavailable)
		},
	}

	client := WithRetries(inner, fastRetryOptions())
	_, err := client.Infer(context.Background(), Request{Counterparty: "Acme"})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}
