// Package metrics holds the Prometheus collectors for the AC bridge.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acbridge"

// Publish results used as the "result" label.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics groups the bridge collectors.
type Metrics struct {
	BusMessages       *prometheus.CounterVec
	ClientCommands    *prometheus.CounterVec
	Publishes         *prometheus.CounterVec
	Clients           prometheus.Gauge
	Devices           prometheus.Gauge
	DevicesEvicted    prometheus.Counter
	BroadcastFailures prometheus.Counter
	MQTTConnected     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_total",
			Help:      "Inbound bus messages by topic kind (device, registry, broadcast_cmd, malformed)",
		}, []string{"kind"}),
		ClientCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "commands_total",
			Help:      "Client commands by type",
		}, []string{"type"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publishes_total",
			Help:      "Outbound bus publishes by result",
		}, []string{"result"}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Currently connected dashboard clients",
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices currently in the registry",
		}),
		DevicesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_evicted_total",
			Help:      "Devices removed by the inactivity sweeper",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "send_failures_total",
			Help:      "Per-session send failures during fanout",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "connected",
			Help:      "1 if the broker connection is up, else 0",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BusMessages,
			m.ClientCommands,
			m.Publishes,
			m.Clients,
			m.Devices,
			m.DevicesEvicted,
			m.BroadcastFailures,
			m.MQTTConnected,
		)
	}
	return m
}

// BusMessage counts one inbound bus message.
func (m *Metrics) BusMessage(kind string) {
	if m == nil {
		return
	}
	m.BusMessages.WithLabelValues(kind).Inc()
}

// ClientCommand counts one client command.
func (m *Metrics) ClientCommand(kind string) {
	if m == nil {
		return
	}
	m.ClientCommands.WithLabelValues(kind).Inc()
}

// Published records the outcome of a bus publish.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	m.Publishes.WithLabelValues(result).Inc()
}

// SetClients records the roster size.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.Clients.Set(float64(n))
}

// SetDevices records the registry size.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.Devices.Set(float64(n))
}

// Evicted counts devices removed by the sweeper.
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DevicesEvicted.Add(float64(n))
}

// SendFailures counts sessions that failed during a broadcast.
func (m *Metrics) SendFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BroadcastFailures.Add(float64(n))
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.MQTTConnected.Set(v)
}
