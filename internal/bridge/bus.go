package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/ac-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/mqtt"
)

// BusClient is the subset of the MQTT client the bus session needs.
// *mqtt.Client satisfies it.
type BusClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	HasSubscription(topic string) bool
	PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(error))
	IsConnected() bool
}

// BusSession owns the bridge's use of the broker connection: the four
// subscriptions and fire-and-forget publishing.
type BusSession struct {
	client     BusClient
	topics     mqtt.Topics
	qos        byte
	commandQoS byte
	logger     Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex // guards handler
	handler func(BusMessage)

	fatal chan error
}

// NewBusSession creates a bus session. qos applies to subscriptions,
// commandQoS to everything the bridge publishes.
func NewBusSession(client BusClient, topics mqtt.Topics, qos, commandQoS byte) *BusSession {
	return &BusSession{
		client:     client,
		topics:     topics,
		qos:        qos,
		commandQoS: commandQoS,
		logger:     noopLogger{},
		fatal:      make(chan error, 1),
	}
}

// Fatal delivers at most one error, wrapping ErrDataSubscription, when the
// data subscription cannot be re-established after a reconnect. The bridge
// is useless without it, so the owner should shut down.
func (b *BusSession) Fatal() <-chan error {
	return b.fatal
}

// SetLogger sets the logger for the bus session.
func (b *BusSession) SetLogger(logger Logger) {
	b.logger = logger
}

// SetMetrics sets the collectors for publish results.
func (b *BusSession) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// Topics returns the topic scheme in use.
func (b *BusSession) Topics() mqtt.Topics {
	return b.topics
}

// subscriptionOrder lists the patterns in the order they are subscribed.
func (b *BusSession) subscriptionOrder() []string {
	return []string{
		b.topics.DataPattern(),
		b.topics.StatusPattern(),
		b.topics.Registry(),
		b.topics.BroadcastCommand(),
	}
}

// Start subscribes to data, status, registry and broadcast command topics,
// in that order, delivering every message to handler. Only a failed data
// subscription is returned (wrapping ErrDataSubscription); other failures
// are logged and retried by Resync.
func (b *BusSession) Start(handler func(BusMessage)) error {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()

	for i, topic := range b.subscriptionOrder() {
		if err := b.subscribe(topic); err != nil {
			if i == 0 {
				return fmt.Errorf("%w: %w", ErrDataSubscription, err)
			}
			b.logger.Error("bus subscription failed", "topic", topic, "error", err)
			continue
		}
		b.logger.Info("subscribed to bus topic", "topic", topic, "qos", b.qos)
	}
	return nil
}

// Resync subscribes to any of the four topics the client is not tracking.
// The MQTT client restores tracked subscriptions itself on reconnect and
// drops the ones it could not restore; this re-issues them. Call it from the
// client's OnConnect. A data subscription the broker refuses is reported on
// Fatal; losing the connection again mid-resync is left to the next OnConnect.
func (b *BusSession) Resync() {
	if b.currentHandler() == nil {
		return
	}
	for i, topic := range b.subscriptionOrder() {
		if b.client.HasSubscription(topic) {
			continue
		}
		if err := b.subscribe(topic); err != nil {
			b.logger.Error("bus resubscription failed", "topic", topic, "error", err)
			if i == 0 && !errors.Is(err, mqtt.ErrNotConnected) {
				b.signalFatal(fmt.Errorf("%w: %w", ErrDataSubscription, err))
			}
			continue
		}
		b.logger.Info("resubscribed to bus topic", "topic", topic)
	}
}

func (b *BusSession) subscribe(topic string) error {
	return b.client.Subscribe(topic, b.qos, func(t string, payload []byte) error {
		if h := b.currentHandler(); h != nil {
			h(BusMessage{Topic: t, Payload: payload})
		}
		return nil
	})
}

func (b *BusSession) signalFatal(err error) {
	select {
	case b.fatal <- err:
	default:
	}
}

func (b *BusSession) currentHandler() func(BusMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

// Publish sends payload without waiting for the broker. The completion
// result is logged and counted only.
func (b *BusSession) Publish(topic string, payload []byte) {
	b.client.PublishAsync(topic, payload, b.commandQoS, false, func(err error) {
		b.metrics.Published(err)
		if err != nil {
			b.logger.Error("bus publish failed", "topic", topic, "error", err)
			return
		}
		b.logger.Debug("bus publish delivered", "topic", topic)
	})
}

// Connected reports whether the broker connection is up.
func (b *BusSession) Connected() bool {
	return b.client.IsConnected()
}
