package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/guides/internal/answer"
	"github.com/antoniostano/guides/internal/channel"
	"github.com/antoniostano/guides/internal/config"
	"github.com/antoniostano/guides/internal/dispatch"
	"github.com/antoniostano/guides/internal/httpapi"
	"github.com/antoniostano/guides/internal/llm"
	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/observability"
	"github.com/antoniostano/guides/internal/retrieval"
	"github.com/antoniostano/guides/internal/session"
)

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Dispatcher *dispatch.Dispatcher
	Registry   *retrieval.Registry
	Metrics    *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, index files, etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.MemoryDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	registry := retrieval.NewRegistry()
	registry.LoadDir(cfg.IndexDir)
	for _, m := range mode.All() {
		available := 0.0
		if registry.Available(m) {
			available = 1.0
		}
		metrics.IndexAvailable.WithLabelValues(string(m)).Set(available)
	}

	client, err := llm.NewClient(llm.Config{
		Mode:    cfg.LLMMode,
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		_ = store.Close()
		_ = registry.Close()
		return nil, fmt.Errorf("llm client init failed: %w", err)
	}

	tracker := session.NewTracker(store)
	pipeline := answer.NewPipeline(store, registry, client, metrics, answer.PipelineConfig{
		HistoryLimit:      cfg.HistoryLimit,
		TopK:              cfg.RetrieveTopK,
		GenerationTimeout: cfg.GenerationTimeout,
		RetrievalTimeout:  cfg.RetrievalTimeout,
	})

	replier := channel.NewHTTPReplier(cfg.ChannelAPIURL, cfg.ChannelAccessToken)
	dispatcher := dispatch.NewDispatcher(tracker, pipeline, replier, metrics, cfg.MenuAfterReply)

	api := httpapi.New(cfg, dispatcher, registry, store, metrics)

	cleanup := func() error {
		var errs []string
		if err := registry.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Dispatcher: dispatcher,
		Registry:   registry,
		Metrics:    metrics,
		Cleanup:    cleanup,
	}, nil
}
