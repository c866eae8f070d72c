package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/inference"
)

// LoadInferenceConfig assembles the inference provider configuration.
// Precedence: viper (config file or AUTOCODE_ env vars), then the
// provider's conventional environment variable for the API key.
func LoadInferenceConfig() (*inference.Config, error) {
	cfg := &inference.Config{
		Provider:    viper.GetString("inference.provider"),
		APIKey:      viper.GetString("inference.api_key"),
		Model:       viper.GetString("inference.model"),
		BaseURL:     viper.GetString("inference.base_url"),
		RateLimit:   viper.GetInt("inference.rate_limit"),
		MaxTokens:   viper.GetInt("inference.max_tokens"),
		Temperature: viper.GetFloat64("inference.temperature"),
	}

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for inference provider %q", common.ErrMissingConfig, cfg.Provider)
	}

	return cfg, nil
}

// PipelineConfig holds the routing and learning knobs.
type PipelineConfig struct {
	Threshold        float64
	Workers          int
	InferenceTimeout time.Duration
	MinCorrections   int
	Boost            float64
	MemoryPath       string
}

// LoadPipelineConfig reads the pipeline knobs; zero values defer to the
// defaults each subsystem applies.
func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Threshold:        viper.GetFloat64("router.threshold"),
		Workers:          viper.GetInt("router.workers"),
		InferenceTimeout: viper.GetDuration("router.inference_timeout"),
		MinCorrections:   viper.GetInt("learner.min_corrections"),
		Boost:            viper.GetFloat64("learner.boost"),
		MemoryPath:       ExpandPath(viper.GetString("memory.path")),
	}
}
