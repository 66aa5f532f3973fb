package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Controller is the bot session state machine plus the other user commands.
type Controller struct {
	suspender

	gw       backend.Gateway
	session  *BotSession
	notifier notify.Poster
	scans    *rate.Limiter
}

// NewController wires the state machine. scansPerMinute bounds manual scans;
// zero or less disables the limit.
func NewController(gw backend.Gateway, session *BotSession, notifier notify.Poster, scansPerMinute int) *Controller {
	limit := rate.Inf
	if scansPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(scansPerMinute))
	}
	return &Controller{
		gw:       gw,
		session:  session,
		notifier: notifier,
		scans:    rate.NewLimiter(limit, 1),
	}
}

func (c *Controller) Session() *BotSession {
	return c.session
}

// RequestStart checks the market and starts the bot when it is open. A
// failed or closed status leaves the session Inactive. The start command's
// own outcome is not checked: once it has been issued the session is Active.
func (c *Controller) RequestStart(ctx context.Context) error {
	if c.session.IsActive() {
		return ErrAlreadyActive
	}

	status, err := backend.FetchMarketStatus(ctx, c.gw)
	c.suspend(ctx, PointStartStatusChecked)

	if err != nil || !status.IsOpen {
		start, end := status.Window()
		c.notifier.Post("🚫 Market Closed",
			fmt.Sprintf("The market is currently closed.\nTrading hours: %s - %s", start, end),
			models.SeverityError)
		log.Info().Str("start", start).Str("end", end).Msg("⛔ start rejected, market closed")
		if err != nil {
			return errors.Join(ErrMarketClosed, err)
		}
		return ErrMarketClosed
	}

	if _, err := c.gw.Call(ctx, backend.Start, http.MethodPost); err != nil {
		log.Warn().Err(err).Msg("start command failed, session marked active anyway")
	}
	c.suspend(ctx, PointStartCommandSent)

	c.session.activate(status)
	c.notifier.Post("✅ Bot Started", "Auto-trading is now active!", models.SeveritySuccess)
	log.Info().Msg("🚀 bot started")
	return nil
}

// RequestStop always ends Inactive, whatever the backend answered.
func (c *Controller) RequestStop(ctx context.Context) error {
	if _, err := c.gw.Call(ctx, backend.Stop, http.MethodPost); err != nil {
		log.Warn().Err(err).Msg("stop command failed, session marked inactive anyway")
	}
	c.suspend(ctx, PointStopCommandSent)

	c.session.deactivate()
	c.notifier.Post("⏹️ Bot Stopped", "Auto-trading has been stopped.", models.SeverityWarning)
	log.Info().Msg("⏸️ bot stopped")
	return nil
}

// Toggle starts an inactive bot and stops an active one.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.session.IsActive() {
		return c.RequestStop(ctx)
	}
	return c.RequestStart(ctx)
}

// ManualScan asks the backend for an immediate signal scan.
func (c *Controller) ManualScan(ctx context.Context) error {
	if !c.scans.Allow() {
		c.notifier.Post("Manual Scan", "A scan was requested moments ago, try again shortly.", models.SeverityWarning)
		return ErrRateLimited
	}
	if _, err := c.gw.Call(ctx, backend.Scan, http.MethodGet); err != nil {
		return err
	}
	c.notifier.Post("Manual Scan", "Triggered live signal scan.", models.SeverityInfo)
	log.Info().Msg("⚡ manual scan triggered")
	return nil
}

// SquareOff closes every position. It does nothing unless confirmed.
func (c *Controller) SquareOff(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if _, err := c.gw.Call(ctx, backend.SquareOff, http.MethodPost); err != nil {
		return err
	}
	c.notifier.Post("Square Off", "All positions closed.", models.SeverityWarning)
	log.Warn().Msg("🔻 all positions squared off")
	return nil
}
