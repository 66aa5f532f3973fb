package notify

import (
	"sync"
	"time"

	"bot_dashboard/internal/metrics"
	"bot_dashboard/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DisplayDuration is how long a notification stays visible.
const DisplayDuration = 4 * time.Second

// Sink receives every posted notification. Sinks are called synchronously
// from Post and must not block.
type Sink func(models.Notification)

// Poster is the write side of the channel, used by every component that
// reports to the user.
type Poster interface {
	Post(title, message string, severity models.Severity)
}

// Channel is a queue of auto-expiring notifications.
type Channel struct {
	mu      sync.Mutex
	items   []models.Notification
	sinks   []Sink
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Registry
}

type Option func(*Channel)

// WithTTL overrides the display duration.
func WithTTL(d time.Duration) Option {
	return func(c *Channel) { c.ttl = d }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Channel) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		ttl: DisplayDuration,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a sink for all future posts.
func (c *Channel) Subscribe(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Post enqueues a notification and schedules its removal. Fire and forget.
func (c *Channel) Post(title, message string, severity models.Severity) {
	n := models.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.Unlock()

	time.AfterFunc(c.ttl, func() { c.remove(n.ID) })

	c.metrics.NotificationPosted(string(severity))
	log.Debug().
		Str("severity", string(severity)).
		Str("title", title).
		Msg(message)

	for _, s := range sinks {
		s(n)
	}
}

func (c *Channel) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Active returns the notifications currently on display, oldest first.
func (c *Channel) Active() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.items))
	copy(out, c.items)
	return out
}
