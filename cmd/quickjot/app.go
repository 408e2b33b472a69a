package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quickjot/quickjot/classify"
	"github.com/quickjot/quickjot/config"
	"github.com/quickjot/quickjot/llm"
	"github.com/quickjot/quickjot/store"
)

// app bundles the wired infrastructure shared by the CLI commands.
type app struct {
	cfg      *config.Config
	db       *store.DB
	client   *llm.Client
	pipeline *classify.Pipeline
}

// newApp loads configuration and wires the store, the LLM client, and
// the classification pipeline. The caller owns db and must Close it.
func newApp(dbPath string) (*app, error) {
	logger := slog.Default()

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := buildClient(cfg, db, logger)

	popts := []classify.PipelineOption{classify.WithLogger(logger)}
	if cfg.Enhance.FetchTitles {
		popts = append(popts, classify.WithTitleFetcher(
			classify.ReadabilityFetcher(cfg.Enhance.FetchTimeout, logger)))
	}
	pipeline := classify.NewPipeline(client, db, popts...)

	return &app{cfg: cfg, db: db, client: client, pipeline: pipeline}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func buildClient(cfg *config.Config, recorder llm.CostRecorder, logger *slog.Logger) *llm.Client {
	temp := cfg.Model.Temperature
	endpoint := llm.Endpoint{
		Provider:    cfg.Model.Provider,
		URL:         cfg.Model.Endpoint,
		Model:       cfg.Model.Name,
		Temperature: &temp,
	}

	opts := []llm.ClientOption{
		llm.WithLogger(logger),
		llm.WithCostRecorder(recorder),
	}
	if cfg.Model.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(cfg.Model.Timeout))
	}
	if len(cfg.Pricing) > 0 {
		opts = append(opts, llm.WithPricing(buildPricing(cfg.Pricing)))
	}

	return llm.NewClient(endpoint, opts...)
}

// buildPricing overlays configured per-1K-token prices onto the
// built-in table, converting to per-token.
func buildPricing(overrides map[string]config.ModelPrice) map[string]llm.Price {
	pricing := make(map[string]llm.Price, len(llm.DefaultPricing)+len(overrides))
	for model, price := range llm.DefaultPricing {
		pricing[model] = price
	}
	for model, price := range overrides {
		pricing[model] = llm.Price{
			InputPerToken:  price.Input / 1000,
			OutputPerToken: price.Output / 1000,
		}
	}
	return pricing
}

// llmProbe builds the /api/health reachability check: a GET against
// the provider's models listing, treating any response as reachable.
func llmProbe(cfg config.ModelConfig) func(ctx context.Context) error {
	provider := llm.GetProvider(cfg.Provider)
	if provider == nil {
		return func(ctx context.Context) error {
			return fmt.Errorf("unknown provider: %s", cfg.Provider)
		}
	}

	url := strings.TrimSuffix(provider.BuildURL(cfg.Endpoint), "/chat/completions") + "/models"
	httpClient := &http.Client{Timeout: 5 * time.Second}

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		provider.SetHeaders(req)

		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("llm endpoint unreachable: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("llm endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}
