package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradecast/internal/logger"
	"tradecast/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	must(err)

	compressOldPublogs(ctx, cfg)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	pipe, web, err := buildPipeline(ctx, cfg)
	must(err)

	if web != nil {
		web.Start(cfg.Web.Addr)
		logger.Info(ctx, "Web viewer listening", "addr", cfg.Web.Addr)
	}

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()
	portfolioTick := time.NewTicker(60 * time.Second)
	defer portfolioTick.Stop()

	logger.Info(ctx, "Pipeline started", "poll_seconds", cfg.PollSeconds, "mode", cfg.Mode)
	for {
		select {
		case <-tick.C:
			if err := pipe.Step(ctx, time.Now().UTC()); err != nil {
				logger.ErrorWithErr(ctx, "Polling cycle failed", err)
			}
		case <-portfolioTick.C:
			now := time.Now().UTC()
			if pipe.ShouldPublishPortfolio(now) {
				if err := pipe.PublishPortfolio(ctx, now); err != nil {
					logger.ErrorWithErr(ctx, "Portfolio publish failed", err)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if web != nil {
				_ = web.Shutdown(shutdownCtx)
			}
			_ = logger.Shutdown(shutdownCtx)
			_ = trace.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
