package inference

import (
	"fmt"
	"strings"

	"github.com/quillbooks/autocode/internal/service"
)

// NewClient creates an inference client based on the provided
// configuration, wrapped with retries and, when configured, a rate
// limiter.
func NewClient(cfg Config) (Client, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		client = &ratedClient{
			inner:   client,
			limiter: newRateLimiter(cfg.RateLimit),
		}
	}

	return WithRetries(client, service.RetryOptions{}), nil
}
