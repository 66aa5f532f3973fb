package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bot_dashboard/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// SendFunc delivers one message to the chat.
type SendFunc func(text string) error

// Forwarder relays notifications to Telegram. Delivery happens on its own
// goroutine behind a rate limiter and a circuit breaker; failures are logged
// and never reach the notification channel.
type Forwarder struct {
	send    SendFunc
	queue   chan models.Notification
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewForwarder allows perMinute messages per minute with a small burst. The
// breaker opens after five consecutive failures and probes again after a
// minute.
func NewForwarder(send SendFunc, perMinute int) *Forwarder {
	if perMinute <= 0 {
		perMinute = 20
	}
	st := gobreaker.Settings{Name: "telegram"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 }
	st.Timeout = time.Minute
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}

	return &Forwarder{
		send:    send,
		queue:   make(chan models.Notification, 32),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 3),
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// Notify is a notify.Sink. It never blocks; when the queue is full the
// notification is dropped.
func (f *Forwarder) Notify(n models.Notification) {
	select {
	case f.queue <- n:
	default:
		log.Warn().Str("title", n.Title).Msg("telegram queue full, notification dropped")
	}
}

// Run delivers queued notifications until ctx ends.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-f.queue:
			if err := f.limiter.Wait(ctx); err != nil {
				return
			}
			if err := f.deliver(n); err != nil {
				log.Warn().Err(err).Str("title", n.Title).Msg("telegram delivery failed")
			}
		}
	}
}

func (f *Forwarder) deliver(n models.Notification) error {
	_, err := f.cb.Execute(func() (interface{}, error) {
		return nil, f.send(formatNotification(n))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("telegram unavailable: %w", err)
	}
	return err
}

func formatNotification(n models.Notification) string {
	return fmt.Sprintf("%s *%s*\n%s", severityEmoji(n.Severity), n.Title, n.Message)
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeveritySuccess:
		return "✅"
	case models.SeverityWarning:
		return "⚠️"
	case models.SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}
