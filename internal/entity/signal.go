package entity

// TradingSignal is the structured intent extracted from a raw signal message.
// It is produced only by a successful parse and never mutated afterwards.
type TradingSignal struct {
	Symbol    Symbol
	IsLong    bool // true = LONG, false = SHORT
	Entry     float64
	Targets   []float64 // take-profit prices in document order, never empty
	Timeframe string
	StopLoss  float64
}
