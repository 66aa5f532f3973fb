package notify

import (
	"sync"

	"bot_dashboard/internal/models"
)

// Recorder keeps every notification it sees. The CLI uses it to print what a
// one-shot command produced; tests use it as a sink that never expires.
type Recorder struct {
	mu    sync.Mutex
	items []models.Notification
}

func (r *Recorder) Sink() Sink {
	return func(n models.Notification) {
		r.mu.Lock()
		r.items = append(r.items, n)
		r.mu.Unlock()
	}
}

func (r *Recorder) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.items))
	copy(out, r.items)
	return out
}

// BySeverity returns the recorded notifications with the given severity.
func (r *Recorder) BySeverity(s models.Severity) []models.Notification {
	var out []models.Notification
	for _, n := range r.All() {
		if n.Severity == s {
			out = append(out, n)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
