// Command pulsgram runs the signal-to-execution engine: it parses trading
// signals arriving on the internal event bus and executes them on Binance
// USDT-margined futures.
//
// Usage:
//
//	pulsgram --config config.yaml
//
// Required environment variables (a .env file is also honored):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pulsgram/config"
	"github.com/vadiminshakov/pulsgram/internal/app"
	"github.com/vadiminshakov/pulsgram/internal/services/binance"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	apiKey := os.Getenv("BINANCE_API_KEY")
	apiSecret := os.Getenv("BINANCE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Mode == config.ModeProduction {
			baseURL = binance.FuturesURL
		} else {
			baseURL = binance.TestnetFuturesURL
		}
	}

	client := binance.NewClient(baseURL, apiKey, apiSecret)
	engine := app.New(cfg, client, app.NewLogSender(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting pulsgram engine", zap.String("mode", string(cfg.Mode)), zap.String("base_url", baseURL))

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("engine stopped", zap.Error(err))
	}
}
