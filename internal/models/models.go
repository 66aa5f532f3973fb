package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trading window used when the backend does not report one.
const (
	DefaultMarketStart = "09:15"
	DefaultMarketEnd   = "15:25"
)

// MarketStatus is a snapshot of the backend's market-hours view.
// It is replaced wholesale on every poll.
type MarketStatus struct {
	IsOpen    bool   `json:"is_open"`
	Known     bool   `json:"known"` // false when the payload had no is_open field
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Window returns the trading window, falling back to the default session.
func (m MarketStatus) Window() (start, end string) {
	start, end = m.StartTime, m.EndTime
	if start == "" {
		start = DefaultMarketStart
	}
	if end == "" {
		end = DefaultMarketEnd
	}
	return start, end
}

// Position is one open holding as reported by the backend.
type Position struct {
	Symbol     string
	Qty        decimal.Decimal
	BuyPrice   decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

// PortfolioSnapshot is the account summary at one point in time.
type PortfolioSnapshot struct {
	TotalValue    decimal.Decimal
	Cash          decimal.Decimal
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
	TotalPnL      decimal.Decimal
	PnLPercent    decimal.Decimal
	WinRate       decimal.Decimal
	TotalTrades   int
	Positions     []Position // sorted by symbol
}

// PortfolioValue is the value of invested positions, excluding cash.
func (p PortfolioSnapshot) PortfolioValue() decimal.Decimal {
	return p.TotalValue.Sub(p.Cash)
}

// PositionRow is a display row of the positions table.
type PositionRow struct {
	Symbol       string          `json:"symbol"`
	Qty          decimal.Decimal `json:"qty"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Invested     decimal.Decimal `json:"invested"`
	CurrentValue decimal.Decimal `json:"current_value"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	TakeProfit   decimal.Decimal `json:"take_profit"`
}

// Row renders the position for the positions table. No live price feed is
// wired in, so the current price is the buy price and P&L is always zero.
func (p Position) Row() PositionRow {
	current := p.BuyPrice
	invested := p.BuyPrice.Mul(p.Qty)
	pnl := current.Sub(p.BuyPrice).Mul(p.Qty)

	pct := decimal.Zero
	if !invested.IsZero() {
		pct = pnl.Div(invested).Mul(decimal.NewFromInt(100))
	}

	return PositionRow{
		Symbol:       p.Symbol,
		Qty:          p.Qty,
		BuyPrice:     p.BuyPrice,
		CurrentPrice: current,
		Invested:     invested,
		CurrentValue: current.Mul(p.Qty),
		PnL:          pnl,
		PnLPercent:   pct,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
	}
}

// Trade is one entry of the backend trade log.
type Trade struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	PnL       float64 `json:"pnl"`
	Score     float64 `json:"score"`
}

// Signal is one row of the live signal scan.
type Signal struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Signal      string  `json:"signal"` // "BUY" or anything else (hold)
	Score       float64 `json:"score"`
	Momentum    float64 `json:"momentum"`
	VolumeRatio float64 `json:"volume_ratio"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit  float64 `json:"take_profit"`
	Reasons     string  `json:"reasons"`
}

func (s Signal) IsBuy() bool {
	return s.Signal == "BUY"
}

// ChartSample is one point of the performance chart.
type ChartSample struct {
	Time           string  `json:"time"`
	TotalValue     float64 `json:"total_value"`
	PortfolioValue float64 `json:"portfolio_value"`
	Cash           float64 `json:"cash"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}
