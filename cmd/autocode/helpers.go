package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/config"
	"github.com/quillbooks/autocode/internal/engine"
	"github.com/quillbooks/autocode/internal/feedback"
	"github.com/quillbooks/autocode/internal/inference"
	"github.com/quillbooks/autocode/internal/learner"
	"github.com/quillbooks/autocode/internal/memory"
	"github.com/quillbooks/autocode/internal/router"
	"github.com/quillbooks/autocode/internal/service"
	"github.com/quillbooks/autocode/internal/storage"
)

// initStorage opens the record store and brings the schema current.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/autocode/autocode.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine assembles the full pipeline. The semantic memory store is
// optional: without an embedding key the pipeline runs with routing
// and audit only.
func initEngine(ctx context.Context) (*engine.Engine, service.Storage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	inferCfg, err := config.LoadInferenceConfig()
	if err != nil {
		_ = store.Close()
		return nil, nil, common.NewUserError(
			"inference is not configured; set inference.api_key or the provider's API key environment variable", err)
	}

	client, err := inference.NewClient(*inferCfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	pipeCfg := config.LoadPipelineConfig()

	opts := engine.Options{
		Loop: feedback.NewLoop(),
	}

	if mem := initMemory(pipeCfg, inferCfg); mem != nil {
		opts.Memory = mem
	}

	eng := engine.New(store,
		router.New(store, client, router.Config{
			Threshold:        pipeCfg.Threshold,
			Workers:          pipeCfg.Workers,
			InferenceTimeout: pipeCfg.InferenceTimeout,
		}),
		learner.New(store, learner.Config{
			MinCorrections: pipeCfg.MinCorrections,
			Boost:          pipeCfg.Boost,
		}),
		opts)

	return eng, store, nil
}

func initMemory(pipeCfg config.PipelineConfig, inferCfg *inference.Config) *memory.Store {
	apiKey := viper.GetString("memory.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && inferCfg.Provider == "openai" {
		apiKey = inferCfg.APIKey
	}
	if apiKey == "" {
		slog.Debug("no embedding API key, semantic memory disabled")
		return nil
	}

	embedder, err := memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
		APIKey:  apiKey,
		Model:   viper.GetString("memory.model"),
		BaseURL: viper.GetString("memory.base_url"),
	})
	if err != nil {
		slog.Warn("semantic memory disabled", "error", err)
		return nil
	}

	path := pipeCfg.MemoryPath
	if path == "" {
		path = config.ExpandPath("$HOME/.local/share/autocode/memory")
	}

	mem, err := memory.NewStore(path, embedder)
	if err != nil {
		slog.Warn("semantic memory disabled", "error", err)
		return nil
	}
	return mem
}
