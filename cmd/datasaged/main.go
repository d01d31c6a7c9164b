package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/datasage-io/datasage/internal/agent"
	apiPkg "github.com/datasage-io/datasage/internal/api"
	"github.com/datasage-io/datasage/internal/catalog"
	"github.com/datasage-io/datasage/internal/config"
	"github.com/datasage-io/datasage/internal/connector"
	"github.com/datasage-io/datasage/internal/connector/telegram"
	"github.com/datasage-io/datasage/internal/logbuf"
	"github.com/datasage-io/datasage/internal/provider"
	"github.com/datasage-io/datasage/internal/session"
	"github.com/datasage-io/datasage/internal/tool"
	"github.com/datasage-io/datasage/internal/warehouse"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging: human-readable on a terminal, JSON otherwise, with
	// the in-memory ring behind /api/logs either way.
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	ring := logbuf.NewRing(2000)
	var inner slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		inner = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(logbuf.NewTeeHandler(inner, ring))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
		if err == nil {
			err = cfg.Validate()
		}
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("datasaged starting", "warehouse", cfg.Warehouse.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Provider
	pcfg, ok := cfg.Providers["default"]
	if !ok {
		logger.Error("no 'default' provider configured")
		os.Exit(1)
	}
	var prov provider.Provider
	switch pcfg.Type {
	case "anthropic":
		var opts []provider.AnthropicOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(pcfg.Model))
		}
		prov = provider.NewAnthropic(pcfg.APIKey, opts...)
	default: // "openai" or empty
		var opts []provider.OpenAIOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithModel(pcfg.Model))
		}
		prov = provider.NewOpenAI(pcfg.APIKey, opts...)
	}
	logger.Info("provider initialized", "type", pcfg.Type, "model", pcfg.Model)

	// 2. Warehouse
	var wh warehouse.Warehouse
	switch cfg.Warehouse.Backend {
	case "bigquery":
		wh, err = warehouse.NewBigQuery(ctx, warehouse.BigQueryConfig{
			ProjectID:       cfg.Warehouse.ProjectID,
			Location:        cfg.Warehouse.Location,
			CredentialsFile: cfg.Warehouse.CredentialsFile,
			MaxBytesBilled:  cfg.Warehouse.MaxBytesBilled,
			MaxRows:         cfg.Warehouse.MaxRows,
		})
	case "sqlite":
		wh, err = warehouse.NewSQLite(cfg.Warehouse.Path, cfg.Warehouse.MaxRows)
	}
	if err != nil {
		logger.Error("failed to open warehouse", "backend", cfg.Warehouse.Backend, "error", err)
		os.Exit(1)
	}
	logger.Info("warehouse connected", "backend", wh.Name())

	// 3. Tools + analyst
	tools := tool.NewRegistry()
	tool.RegisterWarehouseTools(tools, wh)

	analyst := agent.New(prov, tools)
	analyst.Logger = logger.With("component", "analyst")

	// 4. Catalog cache, refreshed in the background
	cat := catalog.New(wh, logger.With("component", "catalog"))
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := cat.Refresh(refreshCtx); err != nil {
		logger.Warn("initial catalog refresh failed", "error", err)
	}
	refreshCancel()
	analyst.CatalogSummary = cat.Summary
	go safeGo(logger, "catalog", func() { cat.Start(ctx, cfg.Catalog.RefreshSchedule) })

	// 5. Session store
	os.MkdirAll(cfg.DataDir, 0o755)
	store, err := session.NewSQLiteStore(cfg.DataDir + "/sessions.db")
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 6. API server with live trace events
	hub := apiPkg.NewHub(logger.With("component", "events"))
	analyst.OnTraceEntry = hub.Broadcast

	apiSrv := apiPkg.NewServer(analyst, store, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), ring, hub)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 7. Telegram connector
	if cfg.Connectors.Telegram != nil {
		tgHandler := func(ctx context.Context, msg connector.InboundMessage) (string, error) {
			start := time.Now()
			answer, trace := analyst.Ask(ctx, msg.Content)
			ex := &session.Exchange{
				ID:        uuid.NewString(),
				SessionID: "telegram:" + msg.ChatID,
				Question:  msg.Content,
				Answer:    answer,
				Elapsed:   time.Since(start),
				Trace:     trace.Entries,
			}
			if err := store.SaveExchange(ex); err != nil {
				logger.Warn("failed to persist telegram exchange", "chat_id", msg.ChatID, "error", err)
			}
			return answer, nil
		}

		tgConn, err := telegram.New(
			telegram.Config{
				Token:     cfg.Connectors.Telegram.Token,
				AllowFrom: cfg.Connectors.Telegram.AllowFrom,
			},
			tgHandler,
			logger.With("connector", "telegram"),
		)
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}

		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
	}

	// 8. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("datasaged stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
