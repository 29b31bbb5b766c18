package listener

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pulsgram/internal/entity"
	"github.com/vadiminshakov/pulsgram/internal/events"
	"github.com/vadiminshakov/pulsgram/internal/services/parser"
)

const errorSource = "PerpSignals::SendMessage"

// Sender delivers outbound chat messages. The chat client collaborator
// implements it; the engine only depends on this contract.
type Sender interface {
	SendMessage(ctx context.Context, peerID int64, text string) error
}

// Listener watches the configured signal channel for trading signals. Each
// parsed signal becomes a fresh intent, is approved onto the bus for the
// executor, and is re-broadcast to the signals destination.
type Listener struct {
	bus           *events.Bus
	sender        Sender
	sourcePeerID  int64
	signalsPeerID int64
	logger        *zap.Logger
}

func New(bus *events.Bus, sender Sender, sourcePeerID, signalsPeerID int64, logger *zap.Logger) *Listener {
	return &Listener{
		bus:           bus,
		sender:        sender,
		sourcePeerID:  sourcePeerID,
		signalsPeerID: signalsPeerID,
		logger:        logger,
	}
}

// Run consumes bus events until the bus closes or the context ends.
func (l *Listener) Run(ctx context.Context) error {
	rx := l.bus.Subscribe()
	l.logger.Info("perp signals listener running")

	for {
		ev, err := rx.Recv(ctx)
		if err != nil {
			if events.HandleRecvError("PerpSignals", err, l.bus) {
				l.logger.Info("perp signals listener stopping", zap.Error(err))
				return nil
			}
			continue
		}

		if ev.Chat == nil || ev.Chat.PeerID != l.sourcePeerID {
			continue
		}

		l.handleMessage(ctx, ev.Chat.Text)
	}
}

func (l *Listener) handleMessage(ctx context.Context, text string) {
	signal := parser.Parse(parser.RemoveEmojis(text))
	if signal == nil {
		return
	}

	intent, err := entity.NewIntentBuilder(signal.Symbol).
		Side(entity.SideFromLong(signal.IsLong)).
		Entry(signal.Entry).
		Targets(signal.Targets).
		Timeframe(signal.Timeframe).
		StopLoss(signal.StopLoss).
		Build()
	if err != nil {
		l.logger.Warn("parsed signal did not build an intent",
			zap.String("symbol", signal.Symbol.String()), zap.Error(err))
		return
	}

	approved := entity.ApprovedFromIntent(intent)
	l.bus.Publish(events.Event{TradeApproved: &approved})

	l.logger.Info("signal approved",
		zap.String("intent_id", intent.IntentID.String()),
		zap.String("symbol", intent.Symbol.String()),
		zap.String("side", intent.Side.String()))

	if err := l.sender.SendMessage(ctx, l.signalsPeerID, parser.FormatSignal(signal)); err != nil {
		l.bus.Publish(events.Event{Error: &events.ErrorEvent{
			Source: errorSource,
			MessageText: fmt.Sprintf("Perp Signals failed.\nTarget: %d\nSignals Peer: %d\nError: %v",
				l.sourcePeerID, l.signalsPeerID, err),
		}})
	}
}
