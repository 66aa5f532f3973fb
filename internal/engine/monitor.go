package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/metrics"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	"github.com/rs/zerolog/log"
)

// MonitorInterval is the safety monitor's polling period.
const MonitorInterval = 30 * time.Second

// Monitor force-stops an active bot once the market closes.
type Monitor struct {
	suspender

	gw       backend.Gateway
	session  *BotSession
	notifier notify.Poster
	metrics  *metrics.Registry
}

func NewMonitor(gw backend.Gateway, session *BotSession, notifier notify.Poster, m *metrics.Registry) *Monitor {
	return &Monitor{
		gw:       gw,
		session:  session,
		notifier: notifier,
		metrics:  m,
	}
}

// Check runs one monitor cycle. It is a no-op while the bot is inactive and
// takes no action when the market status cannot be determined.
func (m *Monitor) Check(ctx context.Context) error {
	if !m.session.IsActive() {
		return nil
	}

	status, err := backend.FetchMarketStatus(ctx, m.gw)
	m.suspend(ctx, PointMonitorPolled)
	if err != nil {
		log.Warn().Err(err).Msg("market status poll failed, leaving bot running")
		return errors.Join(ErrMarketStatusUnknown, err)
	}
	if !status.Known {
		log.Warn().Msg("market status response had no is_open, leaving bot running")
		return ErrMarketStatusUnknown
	}
	if status.IsOpen {
		return nil
	}
	// The user may have stopped the bot while the poll was in flight.
	if !m.session.IsActive() {
		return nil
	}

	if _, err := m.gw.Call(ctx, backend.Stop, http.MethodPost); err != nil {
		log.Warn().Err(err).Msg("automatic stop command failed, session marked inactive anyway")
	}
	m.suspend(ctx, PointMonitorStopSent)

	m.session.deactivate()
	m.metrics.SafetyStop()
	m.notifier.Post("🚫 Market Closed", "Market has closed. Bot stopped automatically.", models.SeverityWarning)
	log.Warn().Msg("🛑 market closed, bot stopped automatically")
	return nil
}
