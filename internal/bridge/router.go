package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ac-bridge/internal/device"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/mqtt"
)

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus publishes to the broker without waiting. *BusSession satisfies it.
type Bus interface {
	Publish(topic string, payload []byte)
}

// TelemetrySink receives device data payloads for time-series storage.
type TelemetrySink interface {
	WriteDeviceTelemetry(brand, deviceID, channel string, payload map[string]any, ts time.Time)
}

// Router routes bus messages to the registry and the roster, and client
// commands to the bus and the registry. It owns no state beyond them.
//
// Dispatch may be called concurrently from the bus callback, the sweeper
// and every client read loop.
type Router struct {
	registry *device.Registry
	roster   *Roster
	bus      Bus
	topics   mqtt.Topics

	logger    Logger
	metrics   *metrics.Metrics
	history   *device.HistoryWriter
	telemetry TelemetrySink

	// broadcastMu orders snapshot-and-send so a stale device list is never
	// delivered after a newer one.
	broadcastMu sync.Mutex
}

// NewRouter wires a router over the given registry, roster and bus.
func NewRouter(registry *device.Registry, roster *Roster, bus Bus, topics mqtt.Topics) *Router {
	return &Router{
		registry: registry,
		roster:   roster,
		bus:      bus,
		topics:   topics,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMetrics sets the Prometheus collectors.
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// SetHistory enables lifecycle history recording.
func (r *Router) SetHistory(w *device.HistoryWriter) {
	r.history = w
}

// SetTelemetry enables writing device data to a time-series sink.
func (r *Router) SetTelemetry(sink TelemetrySink) {
	r.telemetry = sink
}

// Dispatch handles one event.
func (r *Router) Dispatch(ev Event) {
	switch e := ev.(type) {
	case BusMessage:
		r.handleBusMessage(e)
	case ClientCommand:
		r.handleClientCommand(e)
	case ClientConnected:
		r.handleConnected(e.Session)
	case ClientDisconnected:
		r.handleDisconnected(e.Session)
	case DevicesEvicted:
		r.handleEvicted(e.Removed)
	default:
		r.logger.Warn("unhandled bridge event", "event", fmt.Sprintf("%T", ev))
	}
}

// OnEvict adapts the router to device.Sweeper's callback.
func (r *Router) OnEvict(removed []device.Record) {
	r.Dispatch(DevicesEvicted{Removed: removed})
}

// DeleteDevice removes key from the registry, tells relay agents to forget
// it and broadcasts the new device list. An absent key is left alone: no
// directive, no broadcast, and the result is false.
func (r *Router) DeleteDevice(key device.Key) bool {
	if !r.removeDevice(key) {
		return false
	}
	r.publishDirective(DirectiveDeleteDevice, key)
	r.broadcastDeviceList()
	return true
}

// forgetDevice serves the dashboard delete command. The directive and the
// broadcast go out even for a key the registry no longer holds, since an
// agent may still announce a device the sweeper already evicted.
func (r *Router) forgetDevice(key device.Key) {
	r.removeDevice(key)
	r.publishDirective(DirectiveDeleteDevice, key)
	r.broadcastDeviceList()
}

func (r *Router) removeDevice(key device.Key) bool {
	rec, ok := r.registry.Remove(key)
	if !ok {
		return false
	}
	r.logger.Info("device deleted", "key", key.String())
	r.recordHistory(rec, device.EventDeleted)
	r.metrics.SetDevices(r.registry.Len())
	return true
}

// --- bus side ---

func (r *Router) handleBusMessage(msg BusMessage) {
	topic, err := r.topics.Parse(msg.Topic)
	if err != nil {
		r.metrics.BusMessage("malformed")
		r.logger.Warn("dropping message on malformed topic", "topic", msg.Topic, "error", err)
		return
	}
	r.metrics.BusMessage(topic.Kind.String())

	switch topic.Kind {
	case mqtt.TopicRegistry:
		r.handleAnnouncement(msg)
	case mqtt.TopicBroadcastCommand:
		// Device-to-device signalling; includes our own directives.
		r.logger.Debug("ignoring broadcast command", "payload", string(msg.Payload))
	case mqtt.TopicDevice:
		r.handleDeviceMessage(topic, msg)
	}
}

func (r *Router) handleDeviceMessage(topic mqtt.Topic, msg BusMessage) {
	// Any JSON value is relayed; only objects carry a type or telemetry.
	var payload any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		r.logger.Warn("dropping undecodable device message",
			"topic", msg.Topic,
			"payload", string(msg.Payload),
			"error", err,
		)
		return
	}

	key := device.NewKey(topic.Brand, topic.DeviceID)
	rec, created, err := r.registry.Upsert(key, device.Patch{})
	if err != nil {
		r.logger.Warn("registry rejected device message", "topic", msg.Topic, "error", err)
		return
	}
	if created {
		r.logger.Info("device registered", "key", key.String(), "channel", topic.Channel)
		r.recordHistory(rec, device.EventRegistered)
		r.metrics.SetDevices(r.registry.Len())
	} else {
		r.logger.Debug("device message", "key", key.String(), "channel", topic.Channel)
	}

	data, isObject := payload.(map[string]any)
	if r.telemetry != nil && isObject && topic.Channel == mqtt.ChannelData {
		r.telemetry.WriteDeviceTelemetry(key.Brand, key.DeviceID, topic.Channel, data, rec.LastSeen)
	}

	envType := TypeData
	if t, ok := data["type"].(string); ok && t != "" {
		envType = t
	}
	r.broadcast(dataEnvelope{
		Type:        envType,
		Brand:       key.Brand,
		DeviceID:    key.DeviceID,
		MessageType: topic.Channel,
		Data:        payload,
		Timestamp:   timestamp(r.registry.Now()),
	})
}

func (r *Router) handleAnnouncement(msg BusMessage) {
	var ann announcement
	if err := json.Unmarshal(msg.Payload, &ann); err != nil {
		r.logger.Warn("dropping undecodable registry announcement",
			"payload", string(msg.Payload),
			"error", err,
		)
		return
	}
	agentID := ann.agentID()
	if ann.kind() != TypeDeviceRegistry || ann.Devices == nil {
		r.logger.Debug("ignoring registry message", "type", string(ann.Type), "esp_id", agentID)
		return
	}

	applied, skipped := r.registry.BulkReplaceFromAnnouncement(agentID, ann.Devices)
	if skipped > 0 {
		r.logger.Warn("skipped announced devices without brand or deviceId",
			"esp_id", agentID,
			"skipped", skipped,
		)
	}
	for _, res := range applied {
		r.recordHistory(res.Record, device.EventAnnounced)
	}
	r.metrics.SetDevices(r.registry.Len())
	r.logger.Info("device registry announced",
		"esp_id", agentID,
		"total_devices", string(ann.TotalDevices),
		"applied", len(applied),
	)

	r.broadcastDeviceList()
}

// --- client side ---

func (r *Router) handleClientCommand(cmd ClientCommand) {
	var msg clientMessage
	if err := json.Unmarshal(cmd.Raw, &msg); err != nil {
		r.logger.Warn("dropping invalid client message",
			"session", cmd.Session.ID(),
			"payload", string(cmd.Raw),
			"error", err,
		)
		return
	}

	switch msg.Type {
	case TypeCommand:
		r.sendDeviceCommand(msg)
	case TypeRequestDevices:
		r.publishDirective(DirectiveRequestDevices, device.Key{})
	case TypeSwitchDevice:
		r.publishDirective(DirectiveSwitchDevice, msg.key())
	case TypeDeleteDevice:
		r.forgetDevice(msg.key())
	case TypeGetDevices:
		r.sendTo(cmd.Session, deviceList{Type: TypeDeviceList, Devices: r.registry.Snapshot()})
	default:
		r.logger.Warn("ignoring client message",
			"session", cmd.Session.ID(),
			"type", msg.Type,
			"error", ErrUnknownCommand,
		)
		return
	}
	r.metrics.ClientCommand(msg.Type)
}

func (r *Router) sendDeviceCommand(msg clientMessage) {
	key := msg.key()
	r.publish(r.topics.Command(key.Brand, key.DeviceID), deviceCommand{
		Type:        TypeCommand,
		Command:     msg.Command,
		Temperature: msg.Temperature,
		Timestamp:   msg.Timestamp,
	})
	r.logger.Info("device command sent", "key", key.String(), "command", msg.Command)
}

// publishDirective sends a system directive to every relay agent. An empty
// key omits brand and deviceId.
func (r *Router) publishDirective(command string, key device.Key) {
	r.publish(r.topics.BroadcastCommand(), directive{
		Type:      TypeSystem,
		Command:   command,
		Brand:     key.Brand,
		DeviceID:  key.DeviceID,
		Timestamp: timestamp(r.registry.Now()),
	})
	r.logger.Info("broadcast directive sent", "command", command, "key", key.String())
}

func (r *Router) handleConnected(s Session) {
	r.roster.Add(s)
	count := r.roster.Count()
	r.metrics.SetClients(count)
	r.logger.Info("client connected", "session", s.ID(), "clients", count)

	r.broadcastMu.Lock()
	defer r.broadcastMu.Unlock()
	r.sendTo(s, welcome{
		Type:        TypeWelcome,
		Message:     WelcomeMessage,
		ClientCount: count,
		Devices:     r.registry.Snapshot(),
	})
}

func (r *Router) handleDisconnected(s Session) {
	if r.roster.Remove(s) {
		count := r.roster.Count()
		r.metrics.SetClients(count)
		r.logger.Info("client disconnected", "session", s.ID(), "clients", count)
	}
}

func (r *Router) handleEvicted(removed []device.Record) {
	if len(removed) == 0 {
		return
	}
	for _, rec := range removed {
		r.recordHistory(rec, device.EventEvicted)
	}
	r.metrics.Evicted(len(removed))
	r.metrics.SetDevices(r.registry.Len())
	r.broadcastDeviceList()
}

// --- output helpers ---

func (r *Router) broadcastDeviceList() {
	r.broadcastMu.Lock()
	defer r.broadcastMu.Unlock()
	r.broadcastLocked(deviceList{Type: TypeDeviceList, Devices: r.registry.Snapshot()})
}

func (r *Router) broadcast(v any) {
	r.broadcastMu.Lock()
	defer r.broadcastMu.Unlock()
	r.broadcastLocked(v)
}

func (r *Router) broadcastLocked(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to marshal broadcast", "error", err)
		return
	}

	sent, failed := r.roster.Broadcast(payload)
	if failed > 0 {
		r.metrics.SendFailures(failed)
		r.metrics.SetClients(r.roster.Count())
		r.logger.Debug("broadcast had failed sessions", "sent", sent, "failed", failed)
	}
}

func (r *Router) sendTo(s Session, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to marshal reply", "error", err)
		return
	}
	if err := s.Send(payload); err != nil {
		level := r.logger.Debug
		if !errors.Is(err, ErrSessionClosed) {
			level = r.logger.Warn
		}
		level("reply not delivered", "session", s.ID(), "error", err)
	}
}

func (r *Router) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to marshal bus payload", "topic", topic, "error", err)
		return
	}
	r.bus.Publish(topic, payload)
}

func (r *Router) recordHistory(rec device.Record, event device.Event) {
	if r.history == nil {
		return
	}
	//nolint:errcheck // Enqueue logs a full queue itself
	r.history.Enqueue(device.NewHistoryEntry(rec, event, r.registry.Now()))
}
