package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"bot_dashboard/internal/models"
)

var (
	// ErrMarketClosed rejects a start while the market is closed or its
	// status could not be fetched.
	ErrMarketClosed = errors.New("market closed")
	// ErrMarketStatusUnknown means a poll failed or did not say whether the
	// market is open. It is treated as "no change".
	ErrMarketStatusUnknown = errors.New("market status unknown")
	ErrAlreadyActive       = errors.New("bot already active")
	ErrNotConfirmed        = errors.New("square off not confirmed")
	ErrRateLimited         = errors.New("too many scan requests")
)

type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// BotSession owns the bot's Active/Inactive state. The mutex only guards the
// fields; it is never held across a backend call, so the read, call, write
// sequences of the controller and the monitor may interleave.
type BotSession struct {
	mu        sync.RWMutex
	state     State
	since     time.Time
	openedOn  models.MarketStatus
	listeners []func(State)
}

func NewBotSession() *BotSession {
	return &BotSession{state: Inactive, since: time.Now()}
}

func (s *BotSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *BotSession) IsActive() bool {
	return s.State() == Active
}

// LastTransition reports when the state last changed and, for Active, the
// market status observed when the bot was started.
func (s *BotSession) LastTransition() (time.Time, models.MarketStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.since, s.openedOn
}

// OnChange registers a callback invoked after every transition.
func (s *BotSession) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *BotSession) activate(status models.MarketStatus) {
	s.transition(Active, status)
}

func (s *BotSession) deactivate() {
	s.transition(Inactive, models.MarketStatus{})
}

func (s *BotSession) transition(to State, status models.MarketStatus) {
	s.mu.Lock()
	s.state = to
	s.since = time.Now()
	s.openedOn = status
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(to)
	}
}

// Point names a place where an operation has resumed after a backend call
// and is about to act on what it saw.
type Point string

const (
	PointStartStatusChecked Point = "start.status_checked"
	PointStartCommandSent   Point = "start.command_sent"
	PointStopCommandSent    Point = "stop.command_sent"
	PointMonitorPolled      Point = "monitor.polled"
	PointMonitorStopSent    Point = "monitor.stop_sent"
)

// Hook is called at every Point. Tests block in it to force an interleaving.
type Hook func(ctx context.Context, p Point)

type suspender struct {
	hook Hook
}

// SetHook installs h. It must be called before the component is used.
func (s *suspender) SetHook(h Hook) {
	s.hook = h
}

func (s *suspender) suspend(ctx context.Context, p Point) {
	if s.hook != nil {
		s.hook(ctx, p)
	}
}
