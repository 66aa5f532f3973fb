package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/chart"
	"bot_dashboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	portfolioA = `{"value": 105000, "cash": 40000, "unrealized_pnl": 500, "realized_pnl": 4500,
		"total_pnl": 5000, "pnl_percent": 5, "win_rate": 60, "total_trades": 12,
		"positions": {"TCS": {"qty": 10, "buy_price": 3500}}}`
	portfolioB = `{"value": 110000, "cash": 30000, "total_trades": 13, "positions": {}}`
	tradesA    = `[{"timestamp": "2024-05-02T10:00:00", "symbol": "TCS", "action": "BUY", "qty": 10, "price": 3500}]`
	signalsA   = `[{"symbol": "INFY", "signal": "BUY", "score": 0.8}, {"symbol": "TCS", "signal": "SELL", "score": 0.4}]`
)

type capturePublisher struct {
	mu     sync.Mutex
	dashes []Dashboard
	ticks  []time.Time
}

func (p *capturePublisher) PublishDashboard(d Dashboard) {
	p.mu.Lock()
	p.dashes = append(p.dashes, d)
	p.mu.Unlock()
}

func (p *capturePublisher) PublishClock(t time.Time) {
	p.mu.Lock()
	p.ticks = append(p.ticks, t)
	p.mu.Unlock()
}

func (p *capturePublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dashes), len(p.ticks)
}

func newTestRefresher(h *harness) *Refresher {
	return NewRefresher(h.gw, NewView(h.session, chart.NewBuffer()), nil)
}

func seedAll(f *fakeGateway) {
	f.set(backend.Portfolio, portfolioA)
	f.set(backend.Trades, tradesA)
	f.set(backend.Signals, signalsA)
	f.set(backend.MarketStatus, marketOpen)
}

func TestRefreshCycleOrder(t *testing.T) {
	h := newHarness(t)
	seedAll(h.gw)
	r := newTestRefresher(h)
	pub := &capturePublisher{}
	r.AddPublisher(pub)

	report := r.RunCycle(context.Background())
	assert.Empty(t, report.Failed)

	assert.Equal(t, []backend.Endpoint{
		backend.Portfolio,
		backend.Trades,
		backend.Signals,
		backend.MarketStatus,
		backend.Portfolio,
	}, h.gw.endpoints())

	dashes, _ := pub.counts()
	require.Equal(t, 1, dashes)
	d := pub.dashes[0]

	require.NotNil(t, d.Portfolio)
	assert.True(t, d.Portfolio.PortfolioValue.Equal(decimal.NewFromInt(65000)))
	assert.Equal(t, 1, d.Portfolio.ActivePositions)
	assert.Len(t, d.Trades, 1)
	assert.Equal(t, 2, d.SignalCount)
	require.NotNil(t, d.Market)
	assert.True(t, d.Market.IsOpen)
	assert.Equal(t, "inactive", d.Bot)
	assert.Len(t, d.Chart.Labels, 1)
	assert.False(t, d.LastUpdated.IsZero())
	assert.Empty(t, h.rec.All())
}

func TestRefreshPortfolioFailureKeepsPreviousAndContinues(t *testing.T) {
	h := newHarness(t)
	seedAll(h.gw)
	r := newTestRefresher(h)
	r.RunCycle(context.Background())

	h.gw.set(backend.Portfolio, portfolioB)
	h.gw.set(backend.Trades, `[]`)
	h.gw.set(backend.Signals, `[]`)
	h.gw.failNext(backend.Portfolio, 1)

	report := r.RunCycle(context.Background())
	assert.False(t, report.Ok(StepPortfolio))
	assert.True(t, report.Ok(StepTrades))
	assert.True(t, report.Ok(StepChart))

	d := r.View().Snapshot()
	require.NotNil(t, d.Portfolio)
	assert.True(t, d.Portfolio.TotalValue.Equal(decimal.NewFromInt(105000)), "portfolio kept from first cycle")
	assert.Empty(t, d.Trades)
	assert.Zero(t, d.SignalCount)
	assert.Len(t, d.Chart.Labels, 2)
	assert.Equal(t, 110000.0, d.Chart.Datasets[0].Data[1])

	errs := h.rec.BySeverity(models.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Cannot connect to backend!", errs[0].Message)
}

func TestRefreshUnexpectedShapeKeepsPrevious(t *testing.T) {
	h := newHarness(t)
	seedAll(h.gw)
	r := newTestRefresher(h)
	r.RunCycle(context.Background())

	h.gw.set(backend.Trades, `{"detail": "not a list"}`)
	h.gw.set(backend.Signals, `"oops"`)

	report := r.RunCycle(context.Background())
	require.ErrorIs(t, report.Failed[StepTrades], backend.ErrUnexpectedShape)
	require.ErrorIs(t, report.Failed[StepSignals], backend.ErrUnexpectedShape)

	d := r.View().Snapshot()
	assert.Len(t, d.Trades, 1)
	assert.Equal(t, 2, d.SignalCount)
	assert.Empty(t, h.rec.All(), "shape errors are logged, not notified")
}

func TestRefreshAllFailingStillPublishes(t *testing.T) {
	h := newHarness(t)
	r := newTestRefresher(h)
	pub := &capturePublisher{}
	r.AddPublisher(pub)

	report := r.RunCycle(context.Background())
	assert.Len(t, report.Failed, 5)

	dashes, _ := pub.counts()
	require.Equal(t, 1, dashes)
	assert.Nil(t, pub.dashes[0].Portfolio)
	assert.Nil(t, pub.dashes[0].Market)
	assert.Empty(t, pub.dashes[0].Chart.Labels)
}

func TestDashboardReflectsSession(t *testing.T) {
	h, _ := activeHarness(t)
	seedAll(h.gw)
	r := newTestRefresher(h)

	r.RunCycle(context.Background())
	assert.Equal(t, "active", r.View().Snapshot().Bot)
}
