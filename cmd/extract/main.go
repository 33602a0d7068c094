package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/extract"
	"github.com/joseph-ayodele/repair-orders/internal/llm/openai"
	"github.com/joseph-ayodele/repair-orders/internal/normalize"
	"github.com/joseph-ayodele/repair-orders/internal/pricelist"
)

type output struct {
	Order      entity.ParsedOrder `json:"order"`
	Validation *pricelist.Result  `json:"validation,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <document> [pricelist.csv]")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	normalizer := normalize.NewNormalizer(normalize.Config{
		Pdftoppm: cfg.Normalize.Pdftoppm,
		Antiword: cfg.Normalize.Antiword,
		Unrar:    cfg.Normalize.Unrar,
		WorkDir:  cfg.Normalize.WorkDir,
	}, logger)
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	adapter := extract.NewAdapter(normalizer, client, cfg.LLM.Timeout, nil, logger)

	start := time.Now()
	out := output{Order: adapter.FromFile(ctx, path)}
	logger.Info("extract.done", "path", path,
		"items", len(out.Order.Items),
		"needs_review", out.Order.NeedsOperatorReview,
		"elapsed_ms", time.Since(start).Milliseconds())

	if len(os.Args) >= 3 {
		body, err := os.ReadFile(os.Args[2])
		if err != nil {
			logger.Error("read pricelist", "path", os.Args[2], "error", err)
			os.Exit(1)
		}
		src := pricelist.StaticSource(pricelist.ParseCatalog(string(body)))
		c := pricelist.NewCache(cache.NewMemoryStore(nil), src, time.Hour, logger)
		res := pricelist.NewValidator(c, nil, logger).Validate(ctx, out.Order.Items)
		out.Validation = &res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
