package bridge

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ac-bridge/internal/device"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/mqtt"
)

// fakeSession records everything sent to it.
type fakeSession struct {
	id string

	mu      sync.Mutex
	state   SessionState
	sent    [][]byte
	sendErr error
	closes  int
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, state: StateOpen}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.state = StateClosed
	return nil
}

func (s *fakeSession) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// messages decodes every frame the session received.
func (s *fakeSession) messages(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.sent))
	for _, raw := range s.sent {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("session %s received invalid JSON %q: %v", s.id, raw, err)
		}
		out = append(out, m)
	}
	return out
}

// ofType returns the received frames whose "type" equals typ.
func (s *fakeSession) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range s.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// published is one call to fakeBus.Publish.
type published struct {
	topic   string
	payload map[string]any
}

// fakeBus records publishes.
type fakeBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *fakeBus) Publish(topic string, payload []byte) {
	var m map[string]any
	_ = json.Unmarshal(payload, &m)
	b.mu.Lock()
	b.msgs = append(b.msgs, published{topic: topic, payload: m})
	b.mu.Unlock()
}

func (b *fakeBus) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.msgs...)
}

// fakeClock is a controllable time source for the registry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// routerFixture bundles a router with its collaborators.
type routerFixture struct {
	router   *Router
	registry *device.Registry
	roster   *Roster
	bus      *fakeBus
	clock    *fakeClock
}

func newRouterFixture() *routerFixture {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	registry := device.NewRegistry()
	registry.SetClock(clock.Now)
	roster := NewRoster()
	bus := &fakeBus{}

	return &routerFixture{
		router:   NewRouter(registry, roster, bus, mqtt.NewTopics(mqtt.DefaultNamespace)),
		registry: registry,
		roster:   roster,
		bus:      bus,
		clock:    clock,
	}
}

// connect adds an open session through the router, as the transport does.
func (f *routerFixture) connect(id string) *fakeSession {
	s := newFakeSession(id)
	f.router.Dispatch(ClientConnected{Session: s})
	return s
}

func (f *routerFixture) fromBus(topic, payload string) {
	f.router.Dispatch(BusMessage{Topic: topic, Payload: []byte(payload)})
}

func (f *routerFixture) fromClient(s Session, payload string) {
	f.router.Dispatch(ClientCommand{Session: s, Raw: []byte(payload)})
}
