package engine

import (
	"context"
	"fmt"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/chart"
	"bot_dashboard/internal/metrics"

	"github.com/rs/zerolog/log"
)

// DefaultRefreshInterval is the refresh cadence when none is configured.
const DefaultRefreshInterval = 10 * time.Second

type Step string

const (
	StepPortfolio Step = "portfolio"
	StepTrades    Step = "trades"
	StepSignals   Step = "signals"
	StepMarket    Step = "market-status"
	StepChart     Step = "chart"
)

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	Started   time.Time
	Completed time.Time
	Failed    map[Step]error
}

func (r CycleReport) Ok(s Step) bool {
	_, failed := r.Failed[s]
	return !failed
}

// Refresher pulls every display resource once per cycle. Steps run one after
// another; a failed step keeps the previous data and the cycle carries on.
type Refresher struct {
	gw         backend.Gateway
	view       *View
	metrics    *metrics.Registry
	publishers []Publisher
	now        func() time.Time
}

func NewRefresher(gw backend.Gateway, view *View, m *metrics.Registry) *Refresher {
	return &Refresher{
		gw:      gw,
		view:    view,
		metrics: m,
		now:     time.Now,
	}
}

// AddPublisher registers p for every completed cycle. Call before Run.
func (r *Refresher) AddPublisher(p Publisher) {
	r.publishers = append(r.publishers, p)
}

func (r *Refresher) View() *View {
	return r.view
}

func (r *Refresher) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{Started: r.now(), Failed: make(map[Step]error)}

	r.step(ctx, &report, StepPortfolio, r.refreshPortfolio)
	r.step(ctx, &report, StepTrades, r.refreshTrades)
	r.step(ctx, &report, StepSignals, r.refreshSignals)
	r.step(ctx, &report, StepMarket, r.refreshMarket)
	r.step(ctx, &report, StepChart, r.refreshChart)

	report.Completed = r.now()
	r.view.markUpdated(report.Completed)

	failed := make([]string, 0, len(report.Failed))
	for s := range report.Failed {
		failed = append(failed, string(s))
	}
	r.metrics.CycleCompleted(failed)

	log.Debug().
		Dur("took", report.Completed.Sub(report.Started)).
		Strs("failed", failed).
		Msg("🔄 refresh cycle complete")

	dash := r.view.Snapshot()
	for _, p := range r.publishers {
		publish(p, dash)
	}
	return report
}

func publish(p Publisher, d Dashboard) {
	defer func() {
		if v := recover(); v != nil {
			log.Error().Interface("panic", v).Msg("dashboard publisher panicked")
		}
	}()
	p.PublishDashboard(d)
}

func (r *Refresher) step(ctx context.Context, report *CycleReport, s Step, fn func(context.Context) error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn(ctx)
	}()
	if err != nil {
		report.Failed[s] = err
		log.Warn().Err(err).Str("step", string(s)).Msg("refresh step kept previous data")
	}
}

func (r *Refresher) refreshPortfolio(ctx context.Context) error {
	snap, err := backend.FetchPortfolio(ctx, r.gw)
	if err != nil {
		return err
	}
	r.view.setPortfolio(snap)
	return nil
}

func (r *Refresher) refreshTrades(ctx context.Context) error {
	trades, err := backend.FetchTrades(ctx, r.gw)
	if err != nil {
		return err
	}
	r.view.setTrades(trades)
	return nil
}

func (r *Refresher) refreshSignals(ctx context.Context) error {
	signals, err := backend.FetchSignals(ctx, r.gw)
	if err != nil {
		return err
	}
	r.view.setSignals(signals)
	return nil
}

func (r *Refresher) refreshMarket(ctx context.Context) error {
	status, err := backend.FetchMarketStatus(ctx, r.gw)
	if err != nil {
		return err
	}
	r.view.setMarket(status)
	return nil
}

// refreshChart takes its own portfolio snapshot for the chart sample.
func (r *Refresher) refreshChart(ctx context.Context) error {
	snap, err := backend.FetchPortfolio(ctx, r.gw)
	if err != nil {
		return err
	}
	r.view.Chart().Push(chart.SampleFromPortfolio(snap, r.now()))
	return nil
}
