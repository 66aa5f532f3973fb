package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"bot_dashboard/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickyPublisher struct {
	calls atomic.Int32
}

func (p *panickyPublisher) PublishDashboard(Dashboard) {
	p.calls.Add(1)
	panic("render failed")
}

func (p *panickyPublisher) PublishClock(time.Time) {}

func TestEveryRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32
	done := make(chan struct{})
	go func() {
		every(ctx, "test", 5*time.Millisecond, true, func(context.Context) { n.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestEveryWithoutImmediateWaitsForTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var n atomic.Int32
	go every(ctx, "test", time.Hour, false, func(context.Context) { n.Add(1) })

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestEverySurvivesPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var n atomic.Int32
	go every(ctx, "test", 5*time.Millisecond, true, func(context.Context) {
		n.Add(1)
		panic("boom")
	})

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestRunnerDrivesAllTimers(t *testing.T) {
	h, _ := activeHarness(t)
	seedAll(h.gw)

	r := newTestRefresher(h)
	capture := &capturePublisher{}
	bad := &panickyPublisher{}
	r.AddPublisher(bad)
	r.AddPublisher(capture)

	runner := NewRunner(r, NewMonitor(h.gw, h.session, h.ch, nil), 10*time.Millisecond)
	runner.MonitorInterval = 10 * time.Millisecond
	runner.ClockInterval = 5 * time.Millisecond
	runner.Publishers = []Publisher{capture}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bad.calls.Load() >= 2
	}, time.Second, time.Millisecond, "refresh keeps firing after a publisher panics")
	require.Eventually(t, func() bool {
		_, ticks := capture.counts()
		return ticks >= 2
	}, time.Second, time.Millisecond)
	dashes, _ := capture.counts()
	assert.Positive(t, dashes, "a panicking publisher does not starve the next one")

	h.gw.set(backend.MarketStatus, marketClosed)
	require.Eventually(t, func() bool { return !h.session.IsActive() }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
