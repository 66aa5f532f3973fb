package engine

import (
	"sync"
	"time"

	"bot_dashboard/internal/chart"
	"bot_dashboard/internal/models"

	"github.com/shopspring/decimal"
)

// PortfolioView is the financial summary plus the positions table.
type PortfolioView struct {
	TotalValue      decimal.Decimal      `json:"total_value"`
	Cash            decimal.Decimal      `json:"cash"`
	PortfolioValue  decimal.Decimal      `json:"portfolio_value"`
	UnrealizedPnL   decimal.Decimal      `json:"unrealized_pnl"`
	RealizedPnL     decimal.Decimal      `json:"realized_pnl"`
	TotalPnL        decimal.Decimal      `json:"total_pnl"`
	PnLPercent      decimal.Decimal      `json:"pnl_percent"`
	WinRate         decimal.Decimal      `json:"win_rate"`
	TotalTrades     int                  `json:"total_trades"`
	ActivePositions int                  `json:"active_positions"`
	Positions       []models.PositionRow `json:"positions"`
}

func newPortfolioView(p models.PortfolioSnapshot) *PortfolioView {
	rows := make([]models.PositionRow, 0, len(p.Positions))
	for _, pos := range p.Positions {
		rows = append(rows, pos.Row())
	}
	return &PortfolioView{
		TotalValue:      p.TotalValue,
		Cash:            p.Cash,
		PortfolioValue:  p.PortfolioValue(),
		UnrealizedPnL:   p.UnrealizedPnL,
		RealizedPnL:     p.RealizedPnL,
		TotalPnL:        p.TotalPnL,
		PnLPercent:      p.PnLPercent,
		WinRate:         p.WinRate,
		TotalTrades:     p.TotalTrades,
		ActivePositions: len(p.Positions),
		Positions:       rows,
	}
}

// Dashboard is one coherent snapshot handed to the presentation layer.
// Nil fields have never been fetched successfully.
type Dashboard struct {
	Bot         string               `json:"bot"`
	Portfolio   *PortfolioView       `json:"portfolio"`
	Trades      []models.Trade       `json:"trades"`
	Signals     []models.Signal      `json:"signals"`
	SignalCount int                  `json:"signal_count"`
	Market      *models.MarketStatus `json:"market"`
	Chart       chart.Projection     `json:"chart"`
	LastUpdated time.Time            `json:"last_updated"`
}

// Publisher consumes dashboard snapshots and clock ticks.
type Publisher interface {
	PublishDashboard(Dashboard)
	PublishClock(time.Time)
}

// View keeps the last successfully fetched value of every resource.
type View struct {
	mu          sync.RWMutex
	session     *BotSession
	chart       *chart.Buffer
	portfolio   *PortfolioView
	trades      []models.Trade
	signals     []models.Signal
	market      *models.MarketStatus
	lastUpdated time.Time
}

func NewView(session *BotSession, buf *chart.Buffer) *View {
	return &View{session: session, chart: buf}
}

func (v *View) Chart() *chart.Buffer {
	return v.chart
}

func (v *View) setPortfolio(p models.PortfolioSnapshot) {
	pv := newPortfolioView(p)
	v.mu.Lock()
	v.portfolio = pv
	v.mu.Unlock()
}

func (v *View) setTrades(t []models.Trade) {
	v.mu.Lock()
	v.trades = t
	v.mu.Unlock()
}

func (v *View) setSignals(s []models.Signal) {
	v.mu.Lock()
	v.signals = s
	v.mu.Unlock()
}

func (v *View) setMarket(m models.MarketStatus) {
	v.mu.Lock()
	v.market = &m
	v.mu.Unlock()
}

func (v *View) markUpdated(t time.Time) {
	v.mu.Lock()
	v.lastUpdated = t
	v.mu.Unlock()
}

// Snapshot copies the current view.
func (v *View) Snapshot() Dashboard {
	v.mu.RLock()
	defer v.mu.RUnlock()

	d := Dashboard{
		Bot:         v.session.State().String(),
		Portfolio:   v.portfolio,
		Trades:      append([]models.Trade(nil), v.trades...),
		Signals:     append([]models.Signal(nil), v.signals...),
		SignalCount: len(v.signals),
		LastUpdated: v.lastUpdated,
		Chart:       v.chart.Project(),
	}
	if v.market != nil {
		m := *v.market
		d.Market = &m
	}
	return d
}
