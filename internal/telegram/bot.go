package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bot_dashboard/internal/engine"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Commands is what the Telegram menu can trigger.
type Commands interface {
	Toggle(ctx context.Context) error
	ManualScan(ctx context.Context) error
	SquareOff(ctx context.Context, confirmed bool) error
}

type Snapshotter interface {
	Snapshot() engine.Dashboard
}

type Bot struct {
	bot          *tele.Bot
	commands     Commands
	view         Snapshotter
	authorizedID int64
	startTime    time.Time
}

// connectAttempts bounds how often NewBot retries reaching the Telegram API.
const connectAttempts = 5

// NewBot connects to Telegram, retrying with exponential backoff until ctx
// ends or the attempts run out.
func NewBot(ctx context.Context, token string, authorizedID int64, commands Commands, view Snapshotter) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	var (
		tb  *tele.Bot
		err error
	)
	for b.Attempt() < connectAttempts {
		tb, err = tele.NewBot(pref)
		if err == nil {
			break
		}
		wait := b.Duration()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("telegram connect failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	bot := &Bot{
		bot:          tb,
		commands:     commands,
		view:         view,
		authorizedID: authorizedID,
		startTime:    time.Now(),
	}
	bot.setupHandlers()
	return bot, nil
}

// Start polls until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("📱 Telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// Send delivers text to the authorized user.
func (b *Bot) Send(text string) error {
	_, err := b.bot.Send(&tele.User{ID: b.authorizedID}, text, tele.ModeMarkdown)
	return err
}

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/start", b.handleMenu)
	b.bot.Handle("/status", b.handleStatus)

	b.bot.Handle(&btnStartBot, b.handleToggle)
	b.bot.Handle(&btnStopBot, b.handleToggle)
	b.bot.Handle(&btnScan, b.handleScan)
	b.bot.Handle(&btnSquareOff, b.handleSquareOff)
	b.bot.Handle(&btnConfirmSquareOff, b.handleConfirmSquareOff)
	b.bot.Handle(&btnStatus, b.handleStatus)
	b.bot.Handle(&btnBack, b.handleMenu)
}

var (
	btnStartBot         = tele.Btn{Text: "▶️ Start Bot", Unique: "start_bot"}
	btnStopBot          = tele.Btn{Text: "⏸️ Stop Bot", Unique: "stop_bot"}
	btnScan             = tele.Btn{Text: "⚡ Scan", Unique: "scan"}
	btnSquareOff        = tele.Btn{Text: "❌ Square Off", Unique: "square_off"}
	btnConfirmSquareOff = tele.Btn{Text: "⚠️ Yes, close everything", Unique: "confirm_square_off"}
	btnStatus           = tele.Btn{Text: "📊 Status", Unique: "status"}
	btnBack             = tele.Btn{Text: "🔙 Back", Unique: "back"}
)

func (b *Bot) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (b *Bot) handleMenu(c tele.Context) error {
	d := b.view.Snapshot()
	active := d.Bot == engine.Active.String()

	toggle := btnStartBot
	if active {
		toggle = btnStopBot
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(toggle),
		menu.Row(btnScan, btnStatus),
		menu.Row(btnSquareOff),
	)

	msg := fmt.Sprintf("🤖 *Trading Bot*\n\n🔄 Status: %s\n%s\n\nChoose an action:",
		botLabel(active), marketLine(d))
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleToggle(c tele.Context) error {
	ctx, cancel := b.ctx()
	defer cancel()
	if err := b.commands.Toggle(ctx); err != nil {
		log.Info().Err(err).Msg("telegram toggle rejected")
	}
	return b.handleMenu(c)
}

func (b *Bot) handleScan(c tele.Context) error {
	ctx, cancel := b.ctx()
	defer cancel()
	if err := b.commands.ManualScan(ctx); err != nil {
		if errors.Is(err, engine.ErrRateLimited) {
			return c.Send("⏳ A scan was requested moments ago, try again shortly.")
		}
		return c.Send("❌ Scan failed: " + err.Error())
	}
	return c.Send("⚡ Scan triggered")
}

func (b *Bot) handleSquareOff(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnConfirmSquareOff), menu.Row(btnBack))
	return c.Send("⚠️ *Close ALL open positions?*", menu, tele.ModeMarkdown)
}

func (b *Bot) handleConfirmSquareOff(c tele.Context) error {
	ctx, cancel := b.ctx()
	defer cancel()
	if err := b.commands.SquareOff(ctx, true); err != nil {
		return c.Send("❌ Square off failed: " + err.Error())
	}
	return c.Send("✅ All positions closed")
}

func (b *Bot) handleStatus(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnStatus, btnBack))
	return c.Send(statusText(b.view.Snapshot(), time.Since(b.startTime)), menu, tele.ModeMarkdown)
}

func botLabel(active bool) string {
	if active {
		return "▶️ Active"
	}
	return "⏸️ Stopped"
}

func marketLine(d engine.Dashboard) string {
	if d.Market == nil {
		return "🕐 Market: unknown"
	}
	start, end := d.Market.Window()
	if d.Market.IsOpen {
		return fmt.Sprintf("🟢 Market open (%s - %s)", start, end)
	}
	return fmt.Sprintf("🔴 Market closed (%s - %s)", start, end)
}

func statusText(d engine.Dashboard, uptime time.Duration) string {
	var sb strings.Builder
	sb.WriteString("📊 *Dashboard*\n\n")
	sb.WriteString(fmt.Sprintf("🔄 Status: %s\n", botLabel(d.Bot == engine.Active.String())))
	sb.WriteString(marketLine(d) + "\n")

	if p := d.Portfolio; p != nil {
		plEmoji := "🟢"
		if p.TotalPnL.IsNegative() {
			plEmoji = "🔴"
		} else if p.TotalPnL.IsZero() {
			plEmoji = "🟡"
		}
		sb.WriteString(fmt.Sprintf("💰 Total value: %s\n", p.TotalValue.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", p.Cash.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("📈 Invested: %s\n", p.PortfolioValue.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("📋 Positions: %d | Trades: %d\n", p.ActivePositions, p.TotalTrades))
		sb.WriteString(fmt.Sprintf("📊 Win rate: %s%%\n", p.WinRate.StringFixed(1)))
		sb.WriteString(fmt.Sprintf("%s Total P&L: %s (%s%%)\n", plEmoji, p.TotalPnL.StringFixed(2), p.PnLPercent.StringFixed(2)))
	} else {
		sb.WriteString("💰 Portfolio: not loaded yet\n")
	}
	sb.WriteString(fmt.Sprintf("🔍 Signals: %d\n", d.SignalCount))

	sb.WriteString(fmt.Sprintf("\n🕐 Uptime: %s", formatUptime(uptime)))
	if !d.LastUpdated.IsZero() {
		sb.WriteString(fmt.Sprintf("\n🕐 Updated: %s", d.LastUpdated.Format("15:04:05")))
	}
	return sb.String()
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
