package reporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pulsgram/internal/events"
)

// Sender delivers outbound chat messages; the chat client collaborator
// implements it.
type Sender interface {
	SendMessage(ctx context.Context, peerID int64, text string) error
}

// Reporter forwards error events from the bus to the errors destination.
// A failed delivery is logged and dropped: errors about error delivery must
// not loop back onto the bus.
type Reporter struct {
	bus          *events.Bus
	sender       Sender
	errorsPeerID int64
	logger       *zap.Logger
}

func New(bus *events.Bus, sender Sender, errorsPeerID int64, logger *zap.Logger) *Reporter {
	return &Reporter{bus: bus, sender: sender, errorsPeerID: errorsPeerID, logger: logger}
}

// Run consumes bus events until the bus closes or the context ends.
func (r *Reporter) Run(ctx context.Context) error {
	rx := r.bus.Subscribe()
	r.logger.Info("errors reporter running")

	for {
		ev, err := rx.Recv(ctx)
		if err != nil {
			if events.HandleRecvError("ErrorsReporter", err, r.bus) {
				r.logger.Info("errors reporter stopping", zap.Error(err))
				return nil
			}
			continue
		}

		if ev.Error == nil {
			continue
		}

		formatted := fmt.Sprintf("Pulsgram Error\n\nSource: %s\n\nError: %s",
			ev.Error.Source, ev.Error.MessageText)

		if sendErr := r.sender.SendMessage(ctx, r.errorsPeerID, formatted); sendErr != nil {
			r.logger.Error("failed to deliver error report",
				zap.String("source", ev.Error.Source),
				zap.String("original", ev.Error.MessageText),
				zap.Error(sendErr))
		}
	}
}
