package engine

import (
	"context"
	"testing"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activeHarness returns a harness whose session has been started against an
// open market, with the recorder cleared.
func activeHarness(t *testing.T) (*harness, *Controller) {
	t.Helper()
	h := newHarness(t)
	h.gw.set(backend.MarketStatus, marketOpen)
	h.gw.set(backend.Start, ack)
	h.gw.set(backend.Stop, ack)
	c := NewController(h.gw, h.session, h.ch, 0)
	require.NoError(t, c.RequestStart(context.Background()))
	h.rec.Reset()
	return h, c
}

func TestMonitorIdleWhileInactive(t *testing.T) {
	h := newHarness(t)
	m := NewMonitor(h.gw, h.session, h.ch, nil)

	require.NoError(t, m.Check(context.Background()))
	assert.Empty(t, h.gw.endpoints())
	assert.Empty(t, h.rec.All())
}

func TestMonitorStopsBotWhenMarketCloses(t *testing.T) {
	h, _ := activeHarness(t)
	h.gw.set(backend.MarketStatus, marketClosed)
	m := NewMonitor(h.gw, h.session, h.ch, nil)

	require.NoError(t, m.Check(context.Background()))

	assert.Equal(t, Inactive, h.session.State())
	assert.Equal(t, 1, h.gw.callsTo(backend.Stop))

	all := h.rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.SeverityWarning, all[0].Severity)
	assert.Equal(t, "Market has closed. Bot stopped automatically.", all[0].Message)
	assert.NotEqual(t, "Auto-trading has been stopped.", all[0].Message)
}

func TestMonitorStopsEvenWhenStopCommandFails(t *testing.T) {
	h, _ := activeHarness(t)
	h.gw.set(backend.MarketStatus, marketClosed)
	h.gw.fail(backend.Stop)
	m := NewMonitor(h.gw, h.session, h.ch, nil)

	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, Inactive, h.session.State())
	assert.Len(t, h.rec.BySeverity(models.SeverityWarning), 1)
}

func TestMonitorLeavesBotRunningWhenOpen(t *testing.T) {
	h, _ := activeHarness(t)
	m := NewMonitor(h.gw, h.session, h.ch, nil)

	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, Active, h.session.State())
	assert.Zero(t, h.gw.callsTo(backend.Stop))
	assert.Empty(t, h.rec.All())
}

func TestMonitorTreatsUnknownStatusAsNoChange(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeGateway)
	}{
		{"poll fails", func(f *fakeGateway) { f.fail(backend.MarketStatus) }},
		{"is_open missing", func(f *fakeGateway) { f.set(backend.MarketStatus, `{"start_time": "09:15"}`) }},
		{"is_open not a bool", func(f *fakeGateway) { f.set(backend.MarketStatus, `{"is_open": "no"}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := activeHarness(t)
			tt.setup(h.gw)
			m := NewMonitor(h.gw, h.session, h.ch, nil)

			err := m.Check(context.Background())
			require.ErrorIs(t, err, ErrMarketStatusUnknown)
			assert.Equal(t, Active, h.session.State())
			assert.Zero(t, h.gw.callsTo(backend.Stop))
		})
	}
}

func TestMonitorSkipsStopWhenUserStoppedDuringPoll(t *testing.T) {
	h, c := activeHarness(t)
	h.gw.set(backend.MarketStatus, marketClosed)
	m := NewMonitor(h.gw, h.session, h.ch, nil)
	m.SetHook(func(ctx context.Context, p Point) {
		if p == PointMonitorPolled {
			require.NoError(t, c.RequestStop(ctx))
		}
	})

	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, Inactive, h.session.State())
	assert.Equal(t, 1, h.gw.callsTo(backend.Stop), "only the user's stop")
	assert.Len(t, h.rec.BySeverity(models.SeverityWarning), 1)
}

// The monitor observes "closed", then the user stops and restarts the bot
// while the monitor is suspended. When the monitor resumes it still acts on
// its stale observation and stops the fresh session.
func TestMonitorStaleObservationStopsRestartedSession(t *testing.T) {
	h, c := activeHarness(t)
	h.gw.set(backend.MarketStatus, marketClosed)
	m := NewMonitor(h.gw, h.session, h.ch, nil)

	polled := make(chan struct{})
	resume := make(chan struct{})
	m.SetHook(func(ctx context.Context, p Point) {
		if p == PointMonitorPolled {
			close(polled)
			<-resume
		}
	})

	done := make(chan error, 1)
	go func() { done <- m.Check(context.Background()) }()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("monitor never polled")
	}

	require.NoError(t, c.RequestStop(context.Background()))
	h.gw.set(backend.MarketStatus, marketOpen)
	require.NoError(t, c.RequestStart(context.Background()))
	require.Equal(t, Active, h.session.State())

	close(resume)
	require.NoError(t, <-done)

	assert.Equal(t, Inactive, h.session.State())
	assert.Equal(t, 2, h.gw.callsTo(backend.Stop))
}
