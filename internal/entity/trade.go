package entity

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OrderSide is the direction of an order on the exchange.
type OrderSide int

const (
	Buy  OrderSide = iota // LONG
	Sell                  // SHORT
)

// SideFromLong maps signal direction onto an order side.
func SideFromLong(isLong bool) OrderSide {
	if isLong {
		return Buy
	}
	return Sell
}

func (s OrderSide) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// TradeIntent is a candidate trade derived from a parsed signal. The intent id
// is generated fresh per intent and never reused.
type TradeIntent struct {
	IntentID  uuid.UUID
	Symbol    Symbol
	Side      OrderSide
	Entry     float64
	Targets   []float64
	Timeframe string
	StopLoss  float64
}

var (
	ErrMissingSide      = errors.New("side is missing")
	ErrMissingEntry     = errors.New("entry price is missing")
	ErrMissingTargets   = errors.New("targets are missing")
	ErrMissingTimeframe = errors.New("timeframe is missing")
	ErrMissingStopLoss  = errors.New("stop loss is missing")
)

// IntentBuilder assembles a TradeIntent field by field so construction sites
// get a precise error for whichever field the signal lacked.
type IntentBuilder struct {
	symbol    Symbol
	side      *OrderSide
	entry     *float64
	targets   []float64
	timeframe string
	stopLoss  *float64
}

func NewIntentBuilder(symbol Symbol) *IntentBuilder {
	return &IntentBuilder{symbol: symbol}
}

func (b *IntentBuilder) Side(side OrderSide) *IntentBuilder {
	b.side = &side
	return b
}

func (b *IntentBuilder) Entry(entry float64) *IntentBuilder {
	b.entry = &entry
	return b
}

func (b *IntentBuilder) Targets(targets []float64) *IntentBuilder {
	b.targets = append([]float64(nil), targets...)
	return b
}

func (b *IntentBuilder) Timeframe(timeframe string) *IntentBuilder {
	b.timeframe = timeframe
	return b
}

func (b *IntentBuilder) StopLoss(stopLoss float64) *IntentBuilder {
	b.stopLoss = &stopLoss
	return b
}

func (b *IntentBuilder) Build() (TradeIntent, error) {
	switch {
	case b.side == nil:
		return TradeIntent{}, ErrMissingSide
	case b.entry == nil:
		return TradeIntent{}, ErrMissingEntry
	case len(b.targets) == 0:
		return TradeIntent{}, ErrMissingTargets
	case b.timeframe == "":
		return TradeIntent{}, ErrMissingTimeframe
	case b.stopLoss == nil:
		return TradeIntent{}, ErrMissingStopLoss
	}

	return TradeIntent{
		IntentID:  uuid.New(),
		Symbol:    b.symbol,
		Side:      *b.side,
		Entry:     *b.entry,
		Targets:   b.targets,
		Timeframe: b.timeframe,
		StopLoss:  *b.stopLoss,
	}, nil
}

// TradeApproved is the terminal "go" decision for an intent. Published once,
// immutable.
type TradeApproved struct {
	IntentID  uuid.UUID
	Symbol    Symbol
	Side      OrderSide
	Entry     float64
	Targets   []float64
	Timeframe string
	StopLoss  float64
}

// ApprovedFromIntent snapshots an intent into its approval event.
func ApprovedFromIntent(intent TradeIntent) TradeApproved {
	return TradeApproved{
		IntentID:  intent.IntentID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Entry:     intent.Entry,
		Targets:   intent.Targets,
		Timeframe: intent.Timeframe,
		StopLoss:  intent.StopLoss,
	}
}

// RejectionReason classifies why an intent was turned down.
type RejectionReason int

const (
	RejectedByRisk RejectionReason = iota
	RejectedInvalidSignal
	RejectedInsufficientBalance
	RejectedOther
)

func (r RejectionReason) String() string {
	switch r {
	case RejectedByRisk:
		return "risk rejected"
	case RejectedInvalidSignal:
		return "invalid signal"
	case RejectedInsufficientBalance:
		return "insufficient balance"
	default:
		return "other"
	}
}

// TradeRejected is the terminal "no-go" decision for an intent. Detail carries
// free text for RejectedOther.
type TradeRejected struct {
	IntentID uuid.UUID
	Symbol   Symbol
	Reason   RejectionReason
	Detail   string
}
