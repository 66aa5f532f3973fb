package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"bot_dashboard/internal/backend"
	"bot_dashboard/internal/models"
	"bot_dashboard/internal/notify"

	simplejson "github.com/bitly/go-simplejson"
)

type call struct {
	Endpoint backend.Endpoint
	Method   string
}

// fakeGateway answers with canned JSON per endpoint. An endpoint without a
// response fails like an unreachable backend and posts the same notification
// the real client does.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[backend.Endpoint]string
	failures  map[backend.Endpoint]int
	calls     []call
	notifier  notify.Poster
}

func newFakeGateway(notifier notify.Poster) *fakeGateway {
	return &fakeGateway{
		responses: make(map[backend.Endpoint]string),
		failures:  make(map[backend.Endpoint]int),
		notifier:  notifier,
	}
}

func (f *fakeGateway) set(ep backend.Endpoint, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[ep] = body
}

func (f *fakeGateway) fail(ep backend.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.responses, ep)
}

// failNext makes the next n calls to ep fail, then answers normally again.
func (f *fakeGateway) failNext(ep backend.Endpoint, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[ep] = n
}

func (f *fakeGateway) Call(ctx context.Context, ep backend.Endpoint, method string) (*simplejson.Json, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{ep, method})
	body, ok := f.responses[ep]
	if f.failures[ep] > 0 {
		f.failures[ep]--
		ok = false
	}
	f.mu.Unlock()

	if !ok {
		if f.notifier != nil {
			f.notifier.Post("Error", "Cannot connect to backend!", models.SeverityError)
		}
		return nil, &backend.Error{Endpoint: ep, Method: method, Err: fmt.Errorf("connection refused")}
	}
	return simplejson.NewJson([]byte(body))
}

func (f *fakeGateway) callsTo(ep backend.Endpoint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Endpoint == ep {
			n++
		}
	}
	return n
}

func (f *fakeGateway) endpoints() []backend.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Endpoint, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Endpoint
	}
	return out
}

type harness struct {
	gw      *fakeGateway
	session *BotSession
	rec     *notify.Recorder
	ch      *notify.Channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ch := notify.NewChannel()
	rec := &notify.Recorder{}
	ch.Subscribe(rec.Sink())
	return &harness{
		gw:      newFakeGateway(ch),
		session: NewBotSession(),
		rec:     rec,
		ch:      ch,
	}
}

const (
	marketOpen   = `{"is_open": true, "start_time": "09:15", "end_time": "15:25"}`
	marketClosed = `{"is_open": false, "start_time": "09:15", "end_time": "15:25"}`
	ack          = `{"status": "ok"}`
)
