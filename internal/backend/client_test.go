package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bot_dashboard/internal/metrics"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *notify.Recorder, *metrics.Registry) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ch := notify.NewChannel()
	rec := &notify.Recorder{}
	ch.Subscribe(rec.Sink())
	m := metrics.New(prometheus.NewRegistry())
	return NewClient(srv.URL+"/", ch, m), rec, m
}

func TestCallReturnsDecodedJSON(t *testing.T) {
	var gotMethod, gotPath, gotType string
	c, rec, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		fmt.Fprint(w, `{"is_open": true, "start_time": "09:15", "end_time": "15:25"}`)
	}))

	data, err := c.Call(context.Background(), MarketStatus, http.MethodGet)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/market-status", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.True(t, data.Get("is_open").MustBool())
	assert.Empty(t, rec.All())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("market-status", "ok")))
}

func TestCallPostsCommand(t *testing.T) {
	var gotMethod string
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		fmt.Fprint(w, `{"status": "started"}`)
	}))

	_, err := c.Call(context.Background(), Start, http.MethodPost)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestUnparseableBodyIsUnreachable(t *testing.T) {
	c, rec, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>bad gateway</html>`)
	}))

	_, err := c.Call(context.Background(), Portfolio, http.MethodGet)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, Portfolio, gerr.Endpoint)

	errs := rec.BySeverity(models.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Cannot connect to backend!", errs[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("portfolio", "unreachable")))
}

func TestNetworkFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch := notify.NewChannel()
	rec := &notify.Recorder{}
	ch.Subscribe(rec.Sink())
	c := NewClient(url, ch, nil)

	_, err := c.Call(context.Background(), Trades, http.MethodGet)
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Len(t, rec.BySeverity(models.SeverityError), 1)
}

func TestErrorStatusWithJSONBodyIsReturned(t *testing.T) {
	c, rec, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail": "boom"}`)
	}))

	data, err := c.Call(context.Background(), MarketStatus, http.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "boom", data.Get("detail").MustString())
	assert.Empty(t, rec.All())

	ms := DecodeMarketStatus(data)
	assert.False(t, ms.Known)
}
