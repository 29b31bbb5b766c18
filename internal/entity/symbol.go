package entity

import (
	"strings"

	"github.com/pkg/errors"
)

// Symbol identifies a supported USDT-margined futures pair.
type Symbol string

const (
	BTCUSDT   Symbol = "BTCUSDT"
	ETHUSDT   Symbol = "ETHUSDT"
	SOLUSDT   Symbol = "SOLUSDT"
	XRPUSDT   Symbol = "XRPUSDT"
	BNBUSDT   Symbol = "BNBUSDT"
	TRXUSDT   Symbol = "TRXUSDT"
	ADAUSDT   Symbol = "ADAUSDT"
	ASTERUSDT Symbol = "ASTERUSDT"
)

var supportedSymbols = map[Symbol]struct{}{
	BTCUSDT:   {},
	ETHUSDT:   {},
	SOLUSDT:   {},
	XRPUSDT:   {},
	BNBUSDT:   {},
	TRXUSDT:   {},
	ADAUSDT:   {},
	ASTERUSDT: {},
}

// ParseSymbol accepts either the bare asset ("BTC") or the full pair
// ("BTCUSDT"), case-insensitive, and rejects anything outside the
// supported set.
func ParseSymbol(s string) (Symbol, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasSuffix(normalized, "USDT") {
		normalized += "USDT"
	}

	sym := Symbol(normalized)
	if _, ok := supportedSymbols[sym]; !ok {
		return "", errors.Errorf("unsupported symbol: %s", s)
	}

	return sym, nil
}

func (s Symbol) String() string {
	return string(s)
}

// SupportedSymbols returns the full set of tradable pairs in a stable order,
// used to populate the exchange filter table at startup.
func SupportedSymbols() []Symbol {
	return []Symbol{BTCUSDT, ETHUSDT, SOLUSDT, XRPUSDT, BNBUSDT, TRXUSDT, ADAUSDT, ASTERUSDT}
}

// SymbolFilters holds the exchange trading constraints for one pair.
// The table is built once at startup from exchange metadata and shared
// read-only afterwards.
type SymbolFilters struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
	TickSize    float64
}
