package binance

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pulsgram/internal/entity"
)

// extractFilters builds the per-symbol constraint table from exchange
// metadata. A supported symbol missing from the metadata, or a lot-size /
// price filter missing its fields, fails the whole load: trading without
// known constraints is not safe.
func extractFilters(info *ExchangeInfo, supported []entity.Symbol) (map[entity.Symbol]entity.SymbolFilters, error) {
	table := make(map[entity.Symbol]entity.SymbolFilters, len(supported))

	for _, symbol := range supported {
		var found *ExchangeSymbol
		for i := range info.Symbols {
			if info.Symbols[i].Symbol == symbol.String() {
				found = &info.Symbols[i]
				break
			}
		}
		if found == nil {
			return nil, invalidInputf("symbol %s not found in exchangeInfo", symbol)
		}

		filters, err := filtersFromSymbol(found)
		if err != nil {
			return nil, err
		}
		table[symbol] = filters
	}

	return table, nil
}

// filtersFromSymbol pulls step size and minimum quantity from the lot-size
// filter and tick size from the price filter; both are required. A missing
// minimum notional is tolerated and defaults to zero.
func filtersFromSymbol(symbol *ExchangeSymbol) (entity.SymbolFilters, error) {
	var (
		stepSize, minQty, tickSize *float64
		minNotional                float64
	)

	for _, f := range symbol.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			mq, err := strconv.ParseFloat(f.MinQty, 64)
			if err != nil {
				return entity.SymbolFilters{}, &DecodeError{Err: err}
			}
			ss, err := strconv.ParseFloat(f.StepSize, 64)
			if err != nil {
				return entity.SymbolFilters{}, &DecodeError{Err: err}
			}
			minQty, stepSize = &mq, &ss
		case "MIN_NOTIONAL":
			n, err := strconv.ParseFloat(f.Notional, 64)
			if err != nil {
				return entity.SymbolFilters{}, &DecodeError{Err: err}
			}
			minNotional = n
		case "PRICE_FILTER":
			ts, err := strconv.ParseFloat(f.TickSize, 64)
			if err != nil {
				return entity.SymbolFilters{}, &DecodeError{Err: err}
			}
			tickSize = &ts
		}
	}

	switch {
	case stepSize == nil:
		return entity.SymbolFilters{}, &MissingFieldError{Field: "stepSize"}
	case minQty == nil:
		return entity.SymbolFilters{}, &MissingFieldError{Field: "minQty"}
	case tickSize == nil:
		return entity.SymbolFilters{}, &MissingFieldError{Field: "tickSize"}
	}

	return entity.SymbolFilters{
		StepSize:    *stepSize,
		MinQty:      *minQty,
		MinNotional: minNotional,
		TickSize:    *tickSize,
	}, nil
}

// AlignQuantity floors the requested quantity to the symbol's step size.
// Quantities below the minimum, or that align away to nothing, are rejected.
func AlignQuantity(qty float64, filters entity.SymbolFilters) (float64, error) {
	if qty < filters.MinQty {
		return 0, invalidInputf("quantity %v below minQty %v", qty, filters.MinQty)
	}

	aligned := math.Floor(qty/filters.StepSize) * filters.StepSize
	if aligned <= 0 {
		return 0, invalidInputf("quantity %v aligns to zero with step %v", qty, filters.StepSize)
	}

	return aligned, nil
}

// AlignPrice floors the price to the symbol's tick size.
func AlignPrice(price float64, filters entity.SymbolFilters) (float64, error) {
	aligned := math.Floor(price/filters.TickSize) * filters.TickSize
	if aligned <= 0 {
		return 0, invalidInputf("price %v aligns to zero with tick %v", price, filters.TickSize)
	}

	return aligned, nil
}

// MinViableQuantity computes the smallest step-aligned quantity that clears
// both the minimum quantity and the minimum notional at the current price.
// Unlike AlignQuantity this rounds UP: falling one step short of the notional
// floor gets the order rejected by the exchange.
func MinViableQuantity(filters entity.SymbolFilters, currentPrice float64) (float64, error) {
	if currentPrice <= 0 {
		return 0, invalidInputf("non-positive price %v", currentPrice)
	}

	raw := filters.MinQty
	if filters.MinNotional > 0 {
		if notionalQty := filters.MinNotional / currentPrice; notionalQty > raw {
			raw = notionalQty
		}
	}

	return math.Ceil(raw/filters.StepSize) * filters.StepSize, nil
}

// stepPrecision counts the fractional digits of the step or tick size itself.
// The exchange rejects values with more precision than the filter allows, so
// formatted quantities and prices must carry exactly this many digits.
func stepPrecision(step float64) int32 {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}

// FormatQuantity renders a quantity with step-derived precision for the wire.
func FormatQuantity(qty float64, filters entity.SymbolFilters) string {
	return decimal.NewFromFloat(qty).StringFixed(stepPrecision(filters.StepSize))
}

// FormatPrice renders a price with tick-derived precision for the wire.
func FormatPrice(price float64, filters entity.SymbolFilters) string {
	return decimal.NewFromFloat(price).StringFixed(stepPrecision(filters.TickSize))
}
