package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vadiminshakov/pulsgram/internal/entity"
)

// Patterns are compiled once at package init. A broken pattern is a
// programming error and must abort startup, not surface at runtime.
var (
	symbolRe     = regexp.MustCompile(`\b([A-Z]+)USDT\b`)
	directionRe  = regexp.MustCompile(`\b(LONG|SHORT)\b`)
	timeframeRe  = regexp.MustCompile(`\b(\d+[hmdw])\b`)
	entryRe      = regexp.MustCompile(`Entry:\s*([0-9]+\.?[0-9]*)`)
	targetRe     = regexp.MustCompile(`TP[0-9]+:\s*([0-9]+\.?[0-9]*)`)
	stopLossRe   = regexp.MustCompile(`SL:\s*([0-9]+\.?[0-9]*)`)
	disclaimerRe = regexp.MustCompile(`(?is)disclaimer.*$`)
	statusLineRe = regexp.MustCompile(`(?m)^\s*(?:Target|Now):`)
	emojiRe      = regexp.MustCompile(`[\p{So}\p{Sk}\x{FE0F}\x{200D}\x{1F000}-\x{1FAFF}]`)
)

// RemoveEmojis strips emoji and pictographic runes so the signal patterns see
// plain text.
func RemoveEmojis(text string) string {
	return emojiRe.ReplaceAllString(text, "")
}

// Parse extracts a trading signal from raw message text. A nil result means
// the text is not a signal; for ordinary channel chatter that is the normal
// outcome, not a fault. Parsing is pure: the same text always yields the same
// signal.
func Parse(text string) *entity.TradingSignal {
	cleaned := disclaimerRe.ReplaceAllString(text, "")

	if !looksLikeSignal(cleaned) {
		return nil
	}

	symbolMatch := symbolRe.FindStringSubmatch(cleaned)
	if symbolMatch == nil {
		return nil
	}
	symbol, err := entity.ParseSymbol(symbolMatch[1])
	if err != nil {
		return nil
	}

	directionMatch := directionRe.FindStringSubmatch(cleaned)
	if directionMatch == nil {
		return nil
	}
	isLong := directionMatch[1] == "LONG"

	timeframe := "1h"
	if m := timeframeRe.FindStringSubmatch(cleaned); m != nil {
		timeframe = m[1]
	}

	entry, ok := firstPrice(entryRe, cleaned)
	if !ok {
		return nil
	}

	stopLoss, ok := firstPrice(stopLossRe, cleaned)
	if !ok {
		return nil
	}

	var targets []float64
	for _, m := range targetRe.FindAllStringSubmatch(cleaned, -1) {
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		targets = append(targets, price)
	}
	if len(targets) == 0 {
		return nil
	}

	return &entity.TradingSignal{
		Symbol:    symbol,
		IsLong:    isLong,
		Entry:     entry,
		Targets:   targets,
		Timeframe: timeframe,
		StopLoss:  stopLoss,
	}
}

// looksLikeSignal is a cheap precheck before extraction: a signal must carry
// at least one take-profit marker and a stop-loss marker, and must not be a
// progress update ("Target:"/"Now:" status lines) that only resembles one.
func looksLikeSignal(text string) bool {
	if !targetRe.MatchString(text) || !stopLossRe.MatchString(text) {
		return false
	}
	return !statusLineRe.MatchString(text)
}

func firstPrice(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// FormatSignal renders a signal for the outbound signals channel. The layout
// keeps the TPn/SL markers, so a formatted signal parses back to itself.
func FormatSignal(sig *entity.TradingSignal) string {
	if len(sig.Targets) == 0 {
		return "Invalid signal: missing targets"
	}

	direction := "SHORT"
	if sig.IsLong {
		direction = "LONG"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b>\n", sig.Symbol, direction)
	fmt.Fprintf(&b, "Timeframe: %s\n", sig.Timeframe)
	fmt.Fprintf(&b, "Entry: %.5f\n", sig.Entry)
	for i, target := range sig.Targets {
		fmt.Fprintf(&b, "TP%d: %.5f\n", i+1, target)
	}
	fmt.Fprintf(&b, "SL: %.5f\n", sig.StopLoss)

	return b.String()
}
