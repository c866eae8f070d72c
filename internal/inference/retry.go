package inference

import (
	"context"
	"errors"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/service"
)

// retryingClient retries transient provider failures with backoff.
// Malformed responses and timeouts are not retried: the first is
// deterministic, the second already consumed the caller's deadline.
type retryingClient struct {
	inner Client
	opts  service.RetryOptions
}

// WithRetries wraps a client with retry behavior.
func WithRetries(client Client, opts service.RetryOptions) Client {
	return &retryingClient{inner: client, opts: opts}
}

func (r *retryingClient) Infer(ctx context.Context, req Request) (Result, error) {
	var result Result
	err := common.WithRetry(ctx, func() error {
		res, err := r.inner.Infer(ctx, req)
		if err != nil {
			if errors.Is(err, ErrUnavailable) || errors.Is(err, common.ErrRateLimit) {
				return err
			}
			return &common.RetryableError{Err: err, Retryable: false}
		}
		result = res
		return nil
	}, r.opts)
	return result, err
}
