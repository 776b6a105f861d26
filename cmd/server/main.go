package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/api"
	"github.com/DAMG7250-Team1/reportgen/internal/config"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
	"github.com/DAMG7250-Team1/reportgen/internal/pipeline"
	"github.com/DAMG7250-Team1/reportgen/internal/rank"
	"github.com/DAMG7250-Team1/reportgen/internal/report"
	"github.com/DAMG7250-Team1/reportgen/internal/retry"
	"github.com/DAMG7250-Team1/reportgen/internal/sources"
	"github.com/DAMG7250-Team1/reportgen/internal/summarize"
	"github.com/DAMG7250-Team1/reportgen/internal/synth"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy := retry.Policy{
		Retries:   cfg.RetryCount,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}

	// Initialize inference providers. Embeddings always go through OpenAI.
	openaiClient := llm.NewOpenAIClient(llm.OpenAIOptions{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.EmbeddingModel,
	})
	var completer llm.Completer = openaiClient
	model := openaiClient.Model()
	var claude *llm.ClaudeClient
	if cfg.LLMProvider == config.ProviderAnthropic {
		claude = llm.NewClaudeClient(llm.ClaudeOptions{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel})
		completer = claude
		model = claude.Model()
	}
	client := llm.NewClient(completer, openaiClient, policy, llm.NewStats(time.Hour), log.With("component", "llm"))

	// Initialize sources.
	set := sources.Set{Log: log.With("component", "sources")}
	var closePool func()
	if cfg.PostgresDSN != "" {
		pool, err := sources.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		closePool = pool.Close
		set.Stats = sources.NewPostgresStats(pool, cfg.Layout.StatsQueries, log)
	}
	if cfg.LiteratureDir != "" {
		set.Literature = sources.NewDirLiterature(cfg.LiteratureDir, cfg.LiteratureMaxDocs, log)
	}
	if cfg.TavilyAPIKey != "" {
		search := sources.NewTavilySearch(sources.TavilyOptions{APIKey: cfg.TavilyAPIKey, Policy: policy})
		set.Web = sources.NewWebAgent(search, cfg.TavilyMaxResults, log)
	}

	// Initialize pipeline.
	strategy, err := synth.New(cfg.SynthStrategy, client, cfg.MaxConcurrentCalls, log)
	if err != nil {
		log.Error("invalid synthesis strategy", "error", err)
		os.Exit(1)
	}
	gen := report.New(report.Config{
		ChunkWords:    cfg.ChunkWords,
		TopK:          cfg.RankTopK,
		RankFallback:  cfg.RankFallback,
		BudgetWords:   cfg.SourceBudgetWords,
		MaxDepth:      cfg.SummaryMaxDepth,
		Compress:      cfg.Compress,
		MaxConcurrent: cfg.MaxConcurrentCalls,
		Sections:      cfg.Layout.Sections,
	}, report.Components{
		Sources:    set,
		Ranker:     rank.New(client, log),
		Summarizer: summarize.New(client, cfg.MaxConcurrentCalls, log),
		Strategy:   strategy,
		Log:        log,
	})

	orch := pipeline.NewOrchestrator(cfg, gen, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, gen, client.Stats(), model, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ReportTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if claude != nil {
			claude.Close()
		}
		if closePool != nil {
			closePool()
		}
	}()

	log.Info("starting reportgen", "port", cfg.Port, "provider", cfg.LLMProvider, "model", model, "strategy", strategy.Name())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
