// Command tambod serves the decision loop over HTTP: thread storage,
// streaming decision turns, and the custom event protocol.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tambo-ai/tambo-go/internal/config"
	"github.com/tambo-ai/tambo-go/internal/llm/openai"
	"github.com/tambo-ai/tambo-go/internal/loop"
	"github.com/tambo-ai/tambo-go/internal/server"
	"github.com/tambo-ai/tambo-go/internal/storage"
	"github.com/tambo-ai/tambo-go/internal/storage/memory"
	"github.com/tambo-ai/tambo-go/internal/storage/sqlite"
	"github.com/tambo-ai/tambo-go/internal/telemetry"
	"github.com/tambo-ai/tambo-go/internal/tokens"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LLM.APIKey == "" {
		log.Fatal("No LLM API key configured (set TAMBO_LLM__API_KEY or OPENAI_API_KEY)")
	}

	shutdown, err := telemetry.InitTracer("tambod", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Config changes take effect on restart; the watch just surfaces them.
	if err := config.Watch(ctx, *configPath, logger, func(*config.Config) {
		logger.Info("config changed on disk, restart to apply")
	}); err != nil {
		logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}

	var store storage.ThreadStore
	switch cfg.Storage.Type {
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
		logger.Info("storage: sqlite", slog.String("path", cfg.Storage.SQLite.Path))
	default:
		store = memory.New()
		logger.Info("storage: memory")
	}
	defer store.Close()

	var clientOpts []openai.ClientOption
	if cfg.LLM.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	client := openai.NewClient(cfg.LLM.APIKey, clientOpts...)

	driverOpts := []loop.Option{
		loop.WithLogger(logger),
		loop.WithModel(cfg.LLM.Model),
		loop.WithTokenCounter(tokens.NewCounter()),
	}
	if cfg.LLM.MaxTokens > 0 {
		driverOpts = append(driverOpts, loop.WithMaxTokens(cfg.LLM.MaxTokens))
	}
	if cfg.Loop.ValidateSchemas {
		driverOpts = append(driverOpts, loop.WithSchemaValidation())
	}
	driver := loop.New(client, driverOpts...)

	srv := server.New(cfg.Server.Port, logger, store, driver,
		server.WithCustomInstructions(cfg.Loop.CustomInstructions))

	logger.Info("tambod ready",
		slog.String("model", cfg.LLM.Model),
		slog.String("storage", cfg.Storage.Type))

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
