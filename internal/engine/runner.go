package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ClockInterval is the period of the display clock tick.
const ClockInterval = time.Second

// Runner drives the refresher, the safety monitor and the clock on their own
// timers. The timers are never paused; cancelling ctx is the only shutdown.
type Runner struct {
	Refresher       *Refresher
	Monitor         *Monitor
	RefreshInterval time.Duration
	MonitorInterval time.Duration
	ClockInterval   time.Duration
	Publishers      []Publisher
}

func NewRunner(refresher *Refresher, monitor *Monitor, refreshInterval time.Duration) *Runner {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &Runner{
		Refresher:       refresher,
		Monitor:         monitor,
		RefreshInterval: refreshInterval,
		MonitorInterval: MonitorInterval,
		ClockInterval:   ClockInterval,
	}
}

// Run blocks until ctx is cancelled and every timer loop has returned.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		every(ctx, "refresh", r.RefreshInterval, true, func(ctx context.Context) {
			r.Refresher.RunCycle(ctx)
		})
	}()

	go func() {
		defer wg.Done()
		every(ctx, "monitor", r.MonitorInterval, false, func(ctx context.Context) {
			if err := r.Monitor.Check(ctx); err != nil {
				log.Debug().Err(err).Msg("safety check took no action")
			}
		})
	}()

	go func() {
		defer wg.Done()
		every(ctx, "clock", r.ClockInterval, true, func(ctx context.Context) {
			now := time.Now()
			for _, p := range r.Publishers {
				p.PublishClock(now)
			}
		})
	}()

	log.Info().
		Dur("refresh", r.RefreshInterval).
		Dur("monitor", r.MonitorInterval).
		Msg("⏱️ timers started")
	wg.Wait()
}

// every calls fn on each tick. A panic in one firing is logged and does not
// stop later firings.
func every(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if immediate {
		guarded(ctx, name, fn)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			guarded(ctx, name, fn)
		}
	}
}

func guarded(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("timer", name).Msg("timer callback panicked")
		}
	}()
	fn(ctx)
}
