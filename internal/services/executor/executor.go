package executor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pulsgram/internal/entity"
	"github.com/vadiminshakov/pulsgram/internal/events"
	"github.com/vadiminshakov/pulsgram/internal/services/binance"
)

const errorSource = "TradeExecutor"

// Exchange is the slice of the exchange client the executor needs.
type Exchange interface {
	PlaceMinimumMarketOrder(ctx context.Context, symbol entity.Symbol, side entity.OrderSide) (*binance.OrderResponse, error)
}

// Executor consumes trade decisions from the bus and turns approvals into
// orders. Execution failures are republished as error events; they never stop
// the worker.
type Executor struct {
	bus      *events.Bus
	exchange Exchange
	logger   *zap.Logger
}

func New(bus *events.Bus, exchange Exchange, logger *zap.Logger) *Executor {
	return &Executor{bus: bus, exchange: exchange, logger: logger}
}

// Run consumes bus events until the bus closes or the context ends.
func (e *Executor) Run(ctx context.Context) error {
	rx := e.bus.Subscribe()
	e.logger.Info("trade executor running")

	for {
		ev, err := rx.Recv(ctx)
		if err != nil {
			if events.HandleRecvError(errorSource, err, e.bus) {
				e.logger.Info("trade executor stopping", zap.Error(err))
				return nil
			}
			continue
		}

		switch {
		case ev.TradeApproved != nil:
			e.execute(ctx, ev.TradeApproved)
		case ev.TradeRejected != nil:
			e.logger.Info("trade rejected",
				zap.String("intent_id", ev.TradeRejected.IntentID.String()),
				zap.String("symbol", ev.TradeRejected.Symbol.String()),
				zap.String("reason", ev.TradeRejected.Reason.String()),
				zap.String("detail", ev.TradeRejected.Detail))
		}
	}
}

func (e *Executor) execute(ctx context.Context, trade *entity.TradeApproved) {
	resp, err := e.exchange.PlaceMinimumMarketOrder(ctx, trade.Symbol, trade.Side)
	if err != nil {
		e.bus.Publish(events.Event{Error: &events.ErrorEvent{
			Source:      errorSource,
			MessageText: FormatTradeError(trade, err),
		}})
		return
	}

	e.recordStatus(trade, StatusFromResponse(resp))
}

func (e *Executor) recordStatus(trade *entity.TradeApproved, status ExecutionStatus) {
	fields := []zap.Field{
		zap.String("intent_id", trade.IntentID.String()),
		zap.String("symbol", trade.Symbol.String()),
		zap.String("side", trade.Side.String()),
	}

	switch status.Status {
	case StatusFilled:
		e.logger.Info("order filled", append(fields,
			zap.Int64("order_id", status.OrderID),
			zap.String("qty", status.Qty),
			zap.String("avg_price", status.AvgPrice))...)
	case StatusUnknown:
		e.logger.Warn("unknown order status", append(fields, zap.String("raw", status.Raw))...)
	default:
		e.logger.Info("order status", append(fields, zap.Stringer("status", status.Status))...)
	}
}

// FormatTradeError builds the operator-facing diagnostic for a failed order,
// embedding the trade identity plus either the exchange's code and message or
// the local error.
func FormatTradeError(trade *entity.TradeApproved, err error) string {
	var apiErr *binance.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf(
			"TRADE EXECUTION FAILED\n\n"+
				"Trade ID: %s\n"+
				"Symbol: %s\n"+
				"Side: %s\n"+
				"Entry: %v\n"+
				"Stop Loss: %v\n"+
				"Timeframe: %s\n\n"+
				"Exchange Error:\nCode: %d\nReason: %s",
			trade.IntentID, trade.Symbol, trade.Side,
			trade.Entry, trade.StopLoss, trade.Timeframe,
			apiErr.Code, apiErr.Msg)
	}

	return fmt.Sprintf(
		"TRADE EXECUTION FAILED\n\n"+
			"Trade ID: %s\n"+
			"Symbol: %s\n"+
			"Side: %s\n"+
			"Entry: %v\n\n"+
			"System Error:\n%v",
		trade.IntentID, trade.Symbol, trade.Side, trade.Entry, err)
}
