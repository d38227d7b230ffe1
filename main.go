package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quant-trading-engine/config"
	"quant-trading-engine/internal/app"
	"quant-trading-engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Msg("trading engine starting")

	engine, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialization failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	if err := engine.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("engine exited with error")
	}
	logger.Info().Msg("trading engine stopped")
}
