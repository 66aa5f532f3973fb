package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the dashboard's Prometheus collectors. A nil *Registry is
// valid and records nothing.
type Registry struct {
	GatewayRequests   *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec
	RefreshCycles     prometheus.Counter
	RefreshFailures   *prometheus.CounterVec
	BotActive         prometheus.Gauge
	SafetyStops       prometheus.Counter
	NotificationsPost *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_gateway_requests_total",
				Help: "Backend calls by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_gateway_request_duration_seconds",
				Help:    "Backend call latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		RefreshCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_refresh_cycles_total",
				Help: "Completed refresh cycles",
			},
		),
		RefreshFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_refresh_step_failures_total",
				Help: "Refresh steps that kept their previous data",
			},
			[]string{"step"},
		),
		BotActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_bot_active",
				Help: "1 when the bot session is active",
			},
		),
		SafetyStops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_safety_stops_total",
				Help: "Automatic stops issued because the market closed",
			},
		),
		NotificationsPost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_notifications_posted_total",
				Help: "Notifications posted by severity",
			},
			[]string{"severity"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.GatewayRequests,
			r.GatewayDuration,
			r.RefreshCycles,
			r.RefreshFailures,
			r.BotActive,
			r.SafetyStops,
			r.NotificationsPost,
		)
	}
	return r
}

func (r *Registry) ObserveGateway(endpoint string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "unreachable"
	}
	r.GatewayRequests.WithLabelValues(endpoint, result).Inc()
	r.GatewayDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (r *Registry) CycleCompleted(failedSteps []string) {
	if r == nil {
		return
	}
	r.RefreshCycles.Inc()
	for _, step := range failedSteps {
		r.RefreshFailures.WithLabelValues(step).Inc()
	}
}

func (r *Registry) SetBotActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.BotActive.Set(1)
		return
	}
	r.BotActive.Set(0)
}

func (r *Registry) SafetyStop() {
	if r == nil {
		return
	}
	r.SafetyStops.Inc()
}

func (r *Registry) NotificationPosted(severity string) {
	if r == nil {
		return
	}
	r.NotificationsPost.WithLabelValues(severity).Inc()
}
