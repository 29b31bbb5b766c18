package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/pulsgram/config"
	"github.com/vadiminshakov/pulsgram/internal/entity"
	"github.com/vadiminshakov/pulsgram/internal/events"
	"github.com/vadiminshakov/pulsgram/internal/services/binance"
	"github.com/vadiminshakov/pulsgram/internal/services/executor"
	"github.com/vadiminshakov/pulsgram/internal/services/listener"
	"github.com/vadiminshakov/pulsgram/internal/services/reporter"
)

// Sender delivers outbound chat messages for both the signals listener and
// the errors reporter. The chat client collaborator provides the real one.
type Sender interface {
	SendMessage(ctx context.Context, peerID int64, text string) error
}

// Engine wires the event bus, the exchange client and the workers into one
// runnable unit.
type Engine struct {
	cfg    config.Config
	bus    *events.Bus
	client *binance.Client
	sender Sender
	logger *zap.Logger
}

func New(cfg config.Config, client *binance.Client, sender Sender, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		bus:    events.NewBus(cfg.BusCapacity),
		client: client,
		sender: sender,
		logger: logger,
	}
}

// Bus exposes the event bus so the chat-ingestion collaborator can publish
// inbound messages.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Run loads the symbol filter table, starts the workers and supervises them
// until the context ends. Shutdown closes the bus; workers drain and exit.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.client.LoadFilters(ctx, entity.SupportedSymbols()); err != nil {
		return errors.Wrap(err, "failed to load symbol filters")
	}
	e.logger.Info("symbol filters loaded", zap.Int("symbols", len(entity.SupportedSymbols())))

	exec := executor.New(e.bus, e.client, e.logger)
	signals := listener.New(e.bus, e.sender, e.cfg.SignalSourcePeer, e.cfg.SignalsPeer, e.logger)
	errs := reporter.New(e.bus, e.sender, e.cfg.ErrorsPeer, e.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return exec.Run(ctx) })
	g.Go(func() error { return signals.Run(ctx) })
	g.Go(func() error { return errs.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		e.bus.Close()
		return nil
	})

	return g.Wait()
}
