package main

import (
	"context"
	"fmt"
	"os"

	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/pipeline"
	"tradecast/internal/publog"
	"tradecast/internal/recon"
	"tradecast/internal/recon/reconobs"
	"tradecast/internal/sink"
	"tradecast/internal/sink/sinkobs"
	"tradecast/internal/source/flexjson"
	"tradecast/internal/source/flexweb"
	"tradecast/internal/storage"
	"tradecast/internal/store"
	"tradecast/internal/trace"
	"tradecast/internal/web"

	"github.com/joho/godotenv"
)

// initializeSystem initializes the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("TRADECAST_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldPublogs gzips publish-audit files past the retention window.
func compressOldPublogs(ctx context.Context, cfg *store.Config) {
	publog.SetDir(cfg.Publog.Dir)
	if err := publog.CompressOlder(cfg.Publog.CompressDays); err != nil {
		logger.Warn(ctx, "Failed to compress old publish logs", "error", err)
	}
}

// buildPipeline wires source, sinks, store and reconciler together.
func buildPipeline(ctx context.Context, cfg *store.Config) (*pipeline.Pipeline, *web.Server, error) {
	src := initializeSource(cfg)
	if err := src.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect source: %w", err)
	}

	var db *storage.Store
	if cfg.Sinks.Database {
		var err error
		db, err = storage.Open(cfg.DatabaseDSN())
		if err != nil {
			return nil, nil, err
		}
	}

	sinks := initializeSinks(ctx, cfg, db)
	reconciler := initializeReconciler()

	pipe := pipeline.New(cfg, src, sinks, reconciler, db)
	if cfg.Mode == "REPLAY" {
		if err := pipe.Restore(ctx); err != nil {
			return nil, nil, err
		}
	}

	var server *web.Server
	if cfg.Web.Enabled && db != nil {
		server = web.NewServer(db)
	}
	return pipe, server, nil
}

// initializeSource builds the configured report source. Validation
// already rejected unknown kinds.
func initializeSource(cfg *store.Config) interfaces.Source {
	if cfg.Source.Kind == "flexweb" {
		return flexweb.NewSource("flexweb", flexweb.Config{
			Token:            cfg.FlexToken(),
			TradesQueryID:    cfg.Source.Flex.TradesQueryID,
			PortfolioQueryID: cfg.Source.Flex.PortfolioQueryID,
		})
	}
	return flexjson.NewSource("flex", cfg.Source.DataDir)
}

// initializeSinks builds each enabled sink wrapped with observability.
func initializeSinks(ctx context.Context, cfg *store.Config, db *storage.Store) []interfaces.Sink {
	var sinks []interfaces.Sink
	if cfg.Sinks.CLI {
		sinks = append(sinks, sinkobs.Wrap(sink.NewCLISink("cli")))
	}
	if cfg.Sinks.Database && db != nil {
		sinks = append(sinks, sinkobs.Wrap(sink.NewDatabaseSink("database", db)))
	}
	if len(sinks) == 0 {
		logger.Warn(ctx, "No sinks enabled - narratives will be dropped")
	}
	return sinks
}

// initializeReconciler wraps the matching engine with observability.
func initializeReconciler() interfaces.Reconciler {
	return reconobs.Wrap(recon.NewEngine())
}
