package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"bot_dashboard/internal/models"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/shopspring/decimal"
)

// ErrUnexpectedShape is returned when a payload parsed but is not the shape
// the resource promises.
var ErrUnexpectedShape = errors.New("unexpected payload shape")

func FetchMarketStatus(ctx context.Context, gw Gateway) (models.MarketStatus, error) {
	data, err := gw.Call(ctx, MarketStatus, http.MethodGet)
	if err != nil {
		return models.MarketStatus{}, err
	}
	return DecodeMarketStatus(data), nil
}

func FetchPortfolio(ctx context.Context, gw Gateway) (models.PortfolioSnapshot, error) {
	data, err := gw.Call(ctx, Portfolio, http.MethodGet)
	if err != nil {
		return models.PortfolioSnapshot{}, err
	}
	return DecodePortfolio(data)
}

func FetchTrades(ctx context.Context, gw Gateway) ([]models.Trade, error) {
	data, err := gw.Call(ctx, Trades, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return DecodeTrades(data)
}

func FetchSignals(ctx context.Context, gw Gateway) ([]models.Signal, error) {
	data, err := gw.Call(ctx, Signals, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return DecodeSignals(data)
}

// DecodeMarketStatus never fails: a missing is_open leaves Known false and a
// missing window leaves the times empty (see MarketStatus.Window).
func DecodeMarketStatus(data *simplejson.Json) models.MarketStatus {
	var ms models.MarketStatus
	if data == nil {
		return ms
	}
	if v, ok := data.CheckGet("is_open"); ok {
		if open, err := v.Bool(); err == nil {
			ms.IsOpen = open
			ms.Known = true
		}
	}
	ms.StartTime = data.Get("start_time").MustString()
	ms.EndTime = data.Get("end_time").MustString()
	return ms
}

func DecodePortfolio(data *simplejson.Json) (models.PortfolioSnapshot, error) {
	if data == nil {
		return models.PortfolioSnapshot{}, fmt.Errorf("portfolio: %w", ErrUnexpectedShape)
	}
	if _, err := data.Map(); err != nil {
		return models.PortfolioSnapshot{}, fmt.Errorf("portfolio: %w", ErrUnexpectedShape)
	}

	snap := models.PortfolioSnapshot{
		TotalValue:    decimalField(data, "value"),
		Cash:          decimalField(data, "cash"),
		UnrealizedPnL: decimalField(data, "unrealized_pnl"),
		RealizedPnL:   decimalField(data, "realized_pnl"),
		TotalPnL:      decimalField(data, "total_pnl"),
		PnLPercent:    decimalField(data, "pnl_percent"),
		WinRate:       decimalField(data, "win_rate"),
		TotalTrades:   int(decimalField(data, "total_trades").IntPart()),
	}

	positions, _ := data.Get("positions").Map()
	for symbol := range positions {
		p := data.Get("positions").Get(symbol)
		snap.Positions = append(snap.Positions, models.Position{
			Symbol:     symbol,
			Qty:        decimalField(p, "qty"),
			BuyPrice:   decimalField(p, "buy_price"),
			StopLoss:   decimalField(p, "stop_loss"),
			TakeProfit: decimalField(p, "take_profit"),
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Symbol < snap.Positions[j].Symbol
	})
	return snap, nil
}

func DecodeTrades(data *simplejson.Json) ([]models.Trade, error) {
	items, err := array(data, "trades")
	if err != nil {
		return nil, err
	}
	trades := make([]models.Trade, 0, len(items))
	for i := range items {
		t := data.GetIndex(i)
		trades = append(trades, models.Trade{
			Timestamp: t.Get("timestamp").MustString(),
			Symbol:    t.Get("symbol").MustString(),
			Action:    t.Get("action").MustString(),
			Qty:       floatField(t, "qty"),
			Price:     floatField(t, "price"),
			PnL:       floatField(t, "pnl"),
			Score:     floatField(t, "score"),
		})
	}
	return trades, nil
}

func DecodeSignals(data *simplejson.Json) ([]models.Signal, error) {
	items, err := array(data, "signals")
	if err != nil {
		return nil, err
	}
	signals := make([]models.Signal, 0, len(items))
	for i := range items {
		s := data.GetIndex(i)
		signals = append(signals, models.Signal{
			Symbol:      s.Get("symbol").MustString(),
			Price:       floatField(s, "price"),
			Signal:      s.Get("signal").MustString(),
			Score:       floatField(s, "score"),
			Momentum:    floatField(s, "momentum"),
			VolumeRatio: floatField(s, "volume_ratio"),
			StopLoss:    floatField(s, "stop_loss"),
			TakeProfit:  floatField(s, "take_profit"),
			Reasons:     stringish(s.Get("reasons")),
		})
	}
	return signals, nil
}

func array(data *simplejson.Json, what string) ([]interface{}, error) {
	if data == nil {
		return nil, fmt.Errorf("%s: %w", what, ErrUnexpectedShape)
	}
	items, err := data.Array()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, ErrUnexpectedShape)
	}
	return items, nil
}

// decimalField accepts JSON numbers and numeric strings; anything else is zero.
func decimalField(data *simplejson.Json, key string) decimal.Decimal {
	switch v := data.Get(key).Interface().(type) {
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func floatField(data *simplejson.Json, key string) float64 {
	f, _ := decimalField(data, key).Float64()
	return f
}

// stringish renders reasons that may arrive as a string or a list of strings.
func stringish(data *simplejson.Json) string {
	switch v := data.Interface().(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case []interface{}:
		out := ""
		for i := range v {
			if i > 0 {
				out += ", "
			}
			out += stringish(data.GetIndex(i))
		}
		return out
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
