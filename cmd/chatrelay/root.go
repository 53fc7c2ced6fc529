package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatrelay/core/config"
	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/core/orchestrator/middleware"
	"github.com/leofalp/chatrelay/core/sink"
	"github.com/leofalp/chatrelay/providers/observability/slogobs"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatrelay",
		Short:        "Stream chat replies from OpenAI, Anthropic, Google and Mistral models",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newAskCmd())
	return root
}

// app is the wired process: configuration, logging and the chat core.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	orch   *orchestrator.Orchestrator
	relay  *sink.Sink
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	observer := slogobs.New()
	logger := observer.Logger()

	models, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	assembler, err := cfg.Assembler()
	if err != nil {
		return nil, err
	}

	// Shared by every provider; streams are bounded by the middleware, not a client timeout.
	httpClient := &http.Client{Transport: http.DefaultTransport}

	orch, err := orchestrator.New(models, cfg.Providers(httpClient),
		orchestrator.WithAssembler(assembler),
		orchestrator.WithFallbackModel(cfg.FallbackModel),
		orchestrator.WithBudget(cfg.ContextBudget),
		orchestrator.WithObserver(observer),
		orchestrator.WithMiddleware(
			middleware.NewObservabilityMiddleware(observer),
			middleware.NewTimeoutMiddleware(cfg.StreamTimeout),
			middleware.NewLoggingMiddleware(logger, middleware.ParseLogLevel(cfg.RequestLog)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	configured := cfg.Configured()
	if len(configured) == 0 {
		logger.Warn("no provider API key configured; every turn will end with the degraded reply")
	} else {
		for _, kind := range models.Kinds() {
			if !slices.Contains(configured, kind) {
				logger.Warn("provider has no API key; its models will fall back", slog.String("provider", string(kind)))
			}
		}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		orch:   orch,
		relay:  sink.New(orch, sink.WithLogger(logger)),
	}, nil
}
