package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/engine"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const commandTimeout = 30 * time.Second

// oneShot runs a single controller operation and prints the notifications it
// produced.
func oneShot(op func(context.Context, *engine.Controller) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		rec := &notify.Recorder{}
		a.channel.Subscribe(rec.Sink())

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		err := op(ctx, a.controller)
		printNotifications(cmd.OutOrStdout(), rec.All())
		return err
	}
}

func printNotifications(w io.Writer, ns []models.Notification) {
	for _, n := range ns {
		fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(n.Severity)), n.Title, strings.ReplaceAll(n.Message, "\n", " "))
	}
}

func runSquareOff(cmd *cobra.Command, args []string) error {
	confirmed := assumeYes
	if !confirmed {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("refusing to square off without a terminal; pass --yes to confirm")
		}
		var err error
		confirmed, err = confirm(os.Stdin, cmd.OutOrStdout(), "Close ALL open positions? [y/N] ")
		if err != nil {
			return err
		}
	}
	if !confirmed {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	return oneShot(func(ctx context.Context, c *engine.Controller) error {
		return c.SquareOff(ctx, true)
	})(cmd, args)
}

// confirm reads one line from in and accepts only y or yes.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := newApp(cfg)
	rec := &notify.Recorder{}
	a.channel.Subscribe(rec.Sink())

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	status, statusErr := backend.FetchMarketStatus(ctx, a.client)
	portfolio, portfolioErr := backend.FetchPortfolio(ctx, a.client)
	signals, signalsErr := backend.FetchSignals(ctx, a.client)

	printStatus(cmd.OutOrStdout(), status, statusErr, portfolio, portfolioErr, signals, signalsErr)
	printNotifications(cmd.OutOrStdout(), rec.All())
	return errors.Join(statusErr, portfolioErr, signalsErr)
}

func printStatus(w io.Writer,
	status models.MarketStatus, statusErr error,
	p models.PortfolioSnapshot, portfolioErr error,
	signals []models.Signal, signalsErr error,
) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	start, end := status.Window()
	switch {
	case statusErr != nil:
		fmt.Fprintf(tw, "Market\tunavailable\n")
	case !status.Known:
		fmt.Fprintf(tw, "Market\tunknown (%s - %s)\n", start, end)
	case status.IsOpen:
		fmt.Fprintf(tw, "Market\topen (%s - %s)\n", start, end)
	default:
		fmt.Fprintf(tw, "Market\tclosed (%s - %s)\n", start, end)
	}

	if portfolioErr != nil {
		fmt.Fprintf(tw, "Portfolio\tunavailable\n")
	} else {
		fmt.Fprintf(tw, "Total value\t%s\n", p.TotalValue.StringFixed(2))
		fmt.Fprintf(tw, "Cash\t%s\n", p.Cash.StringFixed(2))
		fmt.Fprintf(tw, "Invested\t%s\n", p.PortfolioValue().StringFixed(2))
		fmt.Fprintf(tw, "Total P&L\t%s (%s%%)\n", p.TotalPnL.StringFixed(2), p.PnLPercent.StringFixed(2))
		fmt.Fprintf(tw, "Positions\t%d\n", len(p.Positions))
		for _, pos := range p.Positions {
			row := pos.Row()
			fmt.Fprintf(tw, "  %s\t%s @ %s\n", row.Symbol, row.Qty.String(), row.BuyPrice.StringFixed(2))
		}
	}

	if signalsErr != nil {
		fmt.Fprintf(tw, "Signals\tunavailable\n")
	} else {
		buys := 0
		for _, s := range signals {
			if s.IsBuy() {
				buys++
			}
		}
		fmt.Fprintf(tw, "Signals\t%d (%d buy)\n", len(signals), buys)
	}
}
