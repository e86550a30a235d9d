// Package marketdata handles the CSV-like ingress/egress records
// exchanged with the market-data collaborator and rate-limits outbound
// fetches.
package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/orderbook"
)

// Record type prefixes.
const (
	RecordMarketData = "MARKET_DATA"
	RecordIndicators = "TECHNICAL_INDICATORS"
	RecordOptions    = "OPTIONS_DATA"
	RecordTrade      = "TRADE"
)

// IndicatorRecord is a pre-computed indicator snapshot delivered by the
// collaborator.
type IndicatorRecord struct {
	Symbol     string
	SMA20      float64
	SMA50      float64
	RSI        float64
	BBUpper    float64
	BBLower    float64
	MACD       float64
	MACDSignal float64
}

// OptionQuote is one option chain entry from the collaborator.
type OptionQuote struct {
	Underlying string
	Strike     float64
	Expiration time.Time
	IsCall     bool
	Price      float64
	IV         float64
	Delta      float64
}

// ParseTick decodes MARKET_DATA,<symbol>,<price>,<volume>,<high>,<low>,<change_pct>.
func ParseTick(record string, now time.Time) (core.Tick, error) {
	fields, err := splitRecord(record, RecordMarketData, 7)
	if err != nil {
		return core.Tick{}, err
	}

	nums, err := parseFloats(fields[2:])
	if err != nil {
		return core.Tick{}, err
	}

	t := core.Tick{
		Symbol:    fields[1],
		Price:     nums[0],
		Volume:    nums[1],
		High:      nums[2],
		Low:       nums[3],
		ChangePct: nums[4],
		Time:      now,
	}
	if !t.IsValid() {
		return core.Tick{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("tick %q invalid", record))
	}
	return t, nil
}

// ParseIndicators decodes TECHNICAL_INDICATORS,<symbol>,<sma20>,<sma50>,<rsi>,<bb_upper>,<bb_lower>,<macd>,<macd_signal>.
func ParseIndicators(record string) (IndicatorRecord, error) {
	fields, err := splitRecord(record, RecordIndicators, 9)
	if err != nil {
		return IndicatorRecord{}, err
	}

	nums, err := parseFloats(fields[2:])
	if err != nil {
		return IndicatorRecord{}, err
	}

	return IndicatorRecord{
		Symbol:     fields[1],
		SMA20:      nums[0],
		SMA50:      nums[1],
		RSI:        nums[2],
		BBUpper:    nums[3],
		BBLower:    nums[4],
		MACD:       nums[5],
		MACDSignal: nums[6],
	}, nil
}

// ParseOptionQuote decodes OPTIONS_DATA,<underlying>,<strike>,<expiration>,<type>,<price>,<iv>,<delta>.
// Expiration uses YYYY-MM-DD; type is CALL or PUT.
func ParseOptionQuote(record string) (OptionQuote, error) {
	fields, err := splitRecord(record, RecordOptions, 8)
	if err != nil {
		return OptionQuote{}, err
	}

	strike, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return OptionQuote{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("strike %q: %w", fields[2], err))
	}

	expiration, err := time.Parse("2006-01-02", fields[3])
	if err != nil {
		return OptionQuote{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("expiration %q: %w", fields[3], err))
	}

	var isCall bool
	switch strings.ToUpper(fields[4]) {
	case "CALL", "C":
		isCall = true
	case "PUT", "P":
		isCall = false
	default:
		return OptionQuote{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("option type %q", fields[4]))
	}

	nums, err := parseFloats(fields[5:])
	if err != nil {
		return OptionQuote{}, err
	}

	return OptionQuote{
		Underlying: fields[1],
		Strike:     strike,
		Expiration: expiration,
		IsCall:     isCall,
		Price:      nums[0],
		IV:         nums[1],
		Delta:      nums[2],
	}, nil
}

// FormatTradeRecord renders TRADE,<price>,<qty>,<buy_id>,<sell_id>.
func FormatTradeRecord(t orderbook.Trade) string {
	return fmt.Sprintf("%s,%.2f,%.2f,%s,%s", RecordTrade, t.Price, t.Quantity, t.BuyOrderID, t.SellOrderID)
}

func splitRecord(record, wantPrefix string, wantFields int) ([]string, error) {
	fields := strings.Split(strings.TrimSpace(record), ",")
	if len(fields) != wantFields {
		return nil, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("%s record needs %d fields, got %d", wantPrefix, wantFields, len(fields)))
	}
	if fields[0] != wantPrefix {
		return nil, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("record type %q, want %s", fields[0], wantPrefix))
	}
	if fields[1] == "" {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("empty symbol"))
	}
	return fields, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("field %q: %w", f, err))
		}
		out[i] = v
	}
	return out, nil
}
