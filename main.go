package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot_dashboard/config"
	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/chart"
	"bot_dashboard/internal/engine"
	"bot_dashboard/internal/metrics"
	"bot_dashboard/internal/notify"
	"bot_dashboard/internal/telegram"
	"bot_dashboard/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	backendURL  string
	refreshRate time.Duration
	listenAddr  string
	assumeYes   bool

	cfg *config.Config
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:   "bot-dashboard",
		Short: "Controller for the auto-trading bot dashboard",
		Long: `bot-dashboard drives a remote trading bot: it starts and stops the bot
against market hours, force-stops it when the market closes, and keeps a
live dashboard of portfolio, trades, signals and performance.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              runDashboard,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $DASHBOARD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL")
	rootCmd.PersistentFlags().DurationVar(&refreshRate, "refresh", 0, "Dashboard refresh interval")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Web dashboard listen address")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the dashboard controller (default)",
		RunE:  runDashboard,
	}
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot if the market is open",
		RunE:  oneShot(func(ctx context.Context, c *engine.Controller) error { return c.RequestStart(ctx) }),
	}
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bot",
		RunE:  oneShot(func(ctx context.Context, c *engine.Controller) error { return c.RequestStop(ctx) }),
	}
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Trigger a live signal scan",
		RunE:  oneShot(func(ctx context.Context, c *engine.Controller) error { return c.ManualScan(ctx) }),
	}
	squareOffCmd := &cobra.Command{
		Use:   "squareoff",
		Short: "Close every open position",
		RunE:  runSquareOff,
	}
	squareOffCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print market status and portfolio summary",
		RunE:  runStatus,
	}

	rootCmd.AddCommand(runCmd, startCmd, stopCmd, scanCmd, squareOffCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		c.BackendURL = backendURL
	}
	if flags.Changed("refresh") {
		c.RefreshInterval = refreshRate
	}
	if flags.Changed("listen") {
		c.ListenAddr = listenAddr
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg = c
	return nil
}

// app is the process-wide object graph shared by every command.
type app struct {
	registry   *prometheus.Registry
	metrics    *metrics.Registry
	channel    *notify.Channel
	client     *backend.Client
	session    *engine.BotSession
	controller *engine.Controller
}

func newApp(c *config.Config) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	channel := notify.NewChannel(notify.WithMetrics(m))
	client := backend.NewClient(c.BackendURL, channel, m)
	session := engine.NewBotSession()
	session.OnChange(func(s engine.State) { m.SetBotActive(s == engine.Active) })

	return &app{
		registry:   reg,
		metrics:    m,
		channel:    channel,
		client:     client,
		session:    session,
		controller: engine.NewController(client, session, channel, c.ScanPerMinute),
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	log.Info().Str("backend", cfg.BackendURL).Msg("🚀 Starting dashboard controller...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)

	hub := web.NewHub()
	go hub.Run(ctx)
	a.channel.Subscribe(hub.Notify)

	view := engine.NewView(a.session, chart.NewBuffer())
	refresher := engine.NewRefresher(a.client, view, a.metrics)
	refresher.AddPublisher(hub)
	monitor := engine.NewMonitor(a.client, a.session, a.channel, a.metrics)

	runner := engine.NewRunner(refresher, monitor, cfg.RefreshInterval)
	runner.Publishers = []engine.Publisher{hub}

	server := web.NewServer(cfg.ListenAddr, web.Deps{
		Commands:      a.controller,
		View:          view,
		Notifications: a.channel,
		Hub:           hub,
		Gatherer:      a.registry,
	})
	server.Start()

	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		b, err := telegram.NewBot(ctx, cfg.TelegramToken, cfg.AuthorizedUserID, a.controller, view)
		if err != nil {
			log.Error().Err(err).Msg("Telegram disabled")
		} else {
			bot = b
			fwd := telegram.NewForwarder(bot.Send, 20)
			a.channel.Subscribe(fwd.Notify)
			go fwd.Run(ctx)
			go bot.Start()
			log.Info().Msg("📱 Telegram bot is ready")
		}
	}

	log.Info().Msgf("🌐 Web dashboard: http://localhost%s", cfg.ListenAddr)
	log.Info().Msg("⏸️ Bot is inactive. Start it from the dashboard, Telegram or `bot-dashboard start`.")

	runner.Run(ctx)

	log.Info().Msg("🛑 Shutting down...")
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("web server shutdown")
	}
	log.Info().Msg("👋 Goodbye!")
	return nil
}
