package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"bot_dashboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Close? ")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q", tt.input)
		assert.Equal(t, "Close? ", out.String())
	}
}

func TestPrintNotifications(t *testing.T) {
	var out bytes.Buffer
	printNotifications(&out, []models.Notification{
		{Title: "🚫 Market Closed", Message: "The market is currently closed.\nTrading hours: 09:15 - 15:25", Severity: models.SeverityError},
	})
	assert.Equal(t, "[ERROR] 🚫 Market Closed: The market is currently closed. Trading hours: 09:15 - 15:25\n", out.String())
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out,
		models.MarketStatus{IsOpen: true, Known: true, StartTime: "09:15", EndTime: "15:30"}, nil,
		models.PortfolioSnapshot{
			TotalValue: decimal.NewFromInt(1000),
			Cash:       decimal.NewFromInt(400),
			Positions: []models.Position{
				{Symbol: "TCS", Qty: decimal.NewFromInt(2), BuyPrice: decimal.NewFromInt(300)},
			},
		}, nil,
		[]models.Signal{{Symbol: "INFY", Signal: "BUY"}, {Symbol: "TCS", Signal: "HOLD"}}, nil,
	)
	text := out.String()
	assert.Contains(t, text, "open (09:15 - 15:30)")
	assert.Contains(t, text, "600.00")
	assert.Contains(t, text, "TCS")
	assert.Contains(t, text, "2 (1 buy)")
}

func TestPrintStatusUnavailable(t *testing.T) {
	var out bytes.Buffer
	down := errors.New("down")
	printStatus(&out, models.MarketStatus{}, down, models.PortfolioSnapshot{}, down, nil, down)
	assert.Equal(t, 3, strings.Count(out.String(), "unavailable"))
}
