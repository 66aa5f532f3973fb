package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bot_dashboard/internal/metrics"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/rs/zerolog/log"
)

// Endpoint names a logical backend resource.
type Endpoint string

const (
	MarketStatus Endpoint = "market-status"
	Start        Endpoint = "start"
	Stop         Endpoint = "stop"
	Scan         Endpoint = "scan"
	SquareOff    Endpoint = "squareoff"
	Portfolio    Endpoint = "portfolio"
	Trades       Endpoint = "trades"
	Signals      Endpoint = "signals"
)

func (e Endpoint) Path() string {
	return "/" + string(e)
}

// ErrUnreachable covers network failures and unparseable responses.
var ErrUnreachable = errors.New("backend unreachable")

// Error describes a failed gateway call. It always unwraps to ErrUnreachable.
type Error struct {
	Endpoint Endpoint
	Method   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint.Path(), e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrUnreachable, e.Err}
}

// Gateway is the only way the dashboard talks to the trading backend.
type Gateway interface {
	Call(ctx context.Context, endpoint Endpoint, method string) (*simplejson.Json, error)
}

// Client is the HTTP implementation of Gateway. It does not retry and sets no
// timeout of its own; callers poll again on their own cadence.
type Client struct {
	baseURL  string
	client   *http.Client
	notifier notify.Poster
	metrics  *metrics.Registry
}

func NewClient(baseURL string, notifier notify.Poster, m *metrics.Registry) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{},
		notifier: notifier,
		metrics:  m,
	}
}

// Call issues method against endpoint and returns the decoded JSON body.
// Failures are reported to the user once and returned as *Error.
func (c *Client) Call(ctx context.Context, endpoint Endpoint, method string) (*simplejson.Json, error) {
	started := time.Now()
	data, err := c.do(ctx, endpoint, method)
	c.metrics.ObserveGateway(string(endpoint), err == nil, time.Since(started))
	if err != nil {
		gerr := &Error{Endpoint: endpoint, Method: method, Err: err}
		log.Error().Err(err).
			Str("endpoint", string(endpoint)).
			Str("method", method).
			Msg("❌ backend call failed")
		if c.notifier != nil {
			c.notifier.Post("Error", "Cannot connect to backend!", models.SeverityError)
		}
		return nil, gerr
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, endpoint Endpoint, method string) (*simplejson.Json, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint.Path(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The status code is not interpreted: a JSON error body is handed to the
	// caller, whose shape checks decide what it means.
	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", string(endpoint)).
			Msg("backend returned an error status")
	}

	data, err := simplejson.NewJson(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return data, nil
}
