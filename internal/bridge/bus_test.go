package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/ac-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/mqtt"
)

// asyncPublish is one call to fakeBusClient.PublishAsync.
type asyncPublish struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeBusClient stands in for *mqtt.Client.
type fakeBusClient struct {
	mu         sync.Mutex
	subscribed []string
	qos        map[string]byte
	handlers   map[string]mqtt.MessageHandler
	subErr     map[string]error
	publishes  []asyncPublish
	publishErr error
	connected  bool
}

func newFakeBusClient() *fakeBusClient {
	return &fakeBusClient{
		qos:       make(map[string]byte),
		handlers:  make(map[string]mqtt.MessageHandler),
		subErr:    make(map[string]error),
		connected: true,
	}
}

func (c *fakeBusClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	if err := c.subErr[topic]; err != nil {
		return err
	}
	c.qos[topic] = qos
	c.handlers[topic] = handler
	return nil
}

func (c *fakeBusClient) HasSubscription(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

func (c *fakeBusClient) PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(error)) {
	c.mu.Lock()
	c.publishes = append(c.publishes, asyncPublish{topic: topic, payload: payload, qos: qos, retained: retained})
	err := c.publishErr
	c.mu.Unlock()
	done(err)
}

func (c *fakeBusClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// drop forgets a subscription the way the MQTT client does when it cannot
// restore one after a reconnect.
func (c *fakeBusClient) drop(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
}

func (c *fakeBusClient) deliver(pattern, topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[pattern]
	c.mu.Unlock()
	if h != nil {
		_ = h(topic, payload)
	}
}

func TestBusSessionSubscriptionOrder(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)

	if err := b.Start(func(BusMessage) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := []string{"ac/+/+/data", "ac/+/+/status", "ac/broadcast/registry", "ac/broadcast/cmd"}
	if len(client.subscribed) != len(want) {
		t.Fatalf("subscribed %v, want %v", client.subscribed, want)
	}
	for i, topic := range want {
		if client.subscribed[i] != topic {
			t.Errorf("subscription %d = %q, want %q", i, client.subscribed[i], topic)
		}
		if client.qos[topic] != 1 {
			t.Errorf("qos for %q = %d, want 1", topic, client.qos[topic])
		}
	}
}

func TestBusSessionDataSubscriptionFatal(t *testing.T) {
	client := newFakeBusClient()
	client.subErr["ac/+/+/data"] = mqtt.ErrNotConnected
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)

	err := b.Start(func(BusMessage) {})
	if !errors.Is(err, ErrDataSubscription) {
		t.Errorf("Start() error = %v, want ErrDataSubscription", err)
	}
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want it to wrap the cause", err)
	}
}

func TestBusSessionOtherFailuresNotFatal(t *testing.T) {
	client := newFakeBusClient()
	client.subErr["ac/+/+/status"] = mqtt.ErrSubscribeFailed
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)

	if err := b.Start(func(BusMessage) {}); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if len(client.subscribed) != 4 {
		t.Errorf("attempted %d subscriptions, want 4", len(client.subscribed))
	}

	// Resync retries only the missing one.
	delete(client.subErr, "ac/+/+/status")
	b.Resync()
	if len(client.subscribed) != 5 || client.subscribed[4] != "ac/+/+/status" {
		t.Errorf("after Resync subscribed = %v", client.subscribed)
	}
	if !client.HasSubscription("ac/+/+/status") {
		t.Error("status subscription not restored")
	}
}

func TestBusSessionResyncBeforeStart(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)

	b.Resync()
	if len(client.subscribed) != 0 {
		t.Errorf("Resync() before Start subscribed %v", client.subscribed)
	}
}

func TestBusSessionDataRestoreFailureFatal(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)
	if err := b.Start(func(BusMessage) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Reconnect: the broker refuses the data topic on restore and again on resync.
	client.drop("ac/+/+/data")
	client.subErr["ac/+/+/data"] = mqtt.ErrSubscribeFailed
	b.Resync()

	select {
	case err := <-b.Fatal():
		if !errors.Is(err, ErrDataSubscription) {
			t.Errorf("fatal error = %v, want ErrDataSubscription", err)
		}
		if !errors.Is(err, mqtt.ErrSubscribeFailed) {
			t.Errorf("fatal error = %v, want it to wrap the cause", err)
		}
	default:
		t.Fatal("no fatal error after the data subscription could not be restored")
	}

	// A second failure does not block.
	b.Resync()
}

func TestBusSessionResyncNotFatal(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		err   error
	}{
		{"data while disconnected", "ac/+/+/data", mqtt.ErrNotConnected},
		{"status refused", "ac/+/+/status", mqtt.ErrSubscribeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeBusClient()
			b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)
			if err := b.Start(func(BusMessage) {}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			client.drop(tt.topic)
			client.subErr[tt.topic] = tt.err
			b.Resync()

			select {
			case err := <-b.Fatal():
				t.Errorf("unexpected fatal error %v", err)
			default:
			}
		})
	}
}

func TestBusSessionResyncRestoresData(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)
	if err := b.Start(func(BusMessage) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client.drop("ac/+/+/data")
	b.Resync()

	if !client.HasSubscription("ac/+/+/data") {
		t.Error("data subscription not restored")
	}
	select {
	case err := <-b.Fatal():
		t.Errorf("unexpected fatal error %v", err)
	default:
	}
}

func TestBusSessionDeliversMessages(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)

	var got []BusMessage
	if err := b.Start(func(m BusMessage) { got = append(got, m) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client.deliver("ac/+/+/data", "ac/daikin/esp01/data", []byte(`{"temperature":24.5}`))
	if len(got) != 1 || got[0].Topic != "ac/daikin/esp01/data" || string(got[0].Payload) != `{"temperature":24.5}` {
		t.Errorf("delivered %+v", got)
	}
}

func TestBusSessionPublish(t *testing.T) {
	client := newFakeBusClient()
	m := metrics.New(prometheus.NewRegistry())
	b := NewBusSession(client, mqtt.NewTopics("ac"), 0, 2)
	b.SetMetrics(m)

	b.Publish("ac/daikin/esp01/cmd", []byte(`{"command":"ON"}`))
	client.publishErr = mqtt.ErrPublishFailed
	b.Publish("ac/broadcast/cmd", []byte(`{}`))

	if len(client.publishes) != 2 {
		t.Fatalf("published %d messages, want 2", len(client.publishes))
	}
	p := client.publishes[0]
	if p.topic != "ac/daikin/esp01/cmd" || p.qos != 2 || p.retained {
		t.Errorf("publish = %+v, want command QoS 2 and not retained", p)
	}
	if got := testutil.ToFloat64(m.Publishes.WithLabelValues(metrics.ResultOK)); got != 1 {
		t.Errorf("ok publishes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Publishes.WithLabelValues(metrics.ResultFailed)); got != 1 {
		t.Errorf("failed publishes = %v, want 1", got)
	}
}

func TestBusSessionConnected(t *testing.T) {
	client := newFakeBusClient()
	b := NewBusSession(client, mqtt.NewTopics("ac"), 1, 1)
	if !b.Connected() {
		t.Error("Connected() = false")
	}
	client.connected = false
	if b.Connected() {
		t.Error("Connected() = true after disconnect")
	}
	if b.Topics().Namespace != "ac" {
		t.Errorf("Topics().Namespace = %q", b.Topics().Namespace)
	}
}
