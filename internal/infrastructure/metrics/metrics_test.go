package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BusMessage("device")
	m.SetClients(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"acbridge_bus_messages_total",
		"acbridge_clients",
		"acbridge_devices",
		"acbridge_devices_evicted_total",
		"acbridge_bus_connected",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BusMessage("device")
	m.BusMessage("device")
	m.BusMessage("malformed")
	m.ClientCommand("perintah")
	m.Published(nil)
	m.Published(errors.New("timeout"))
	m.Evicted(2)
	m.Evicted(0)
	m.SendFailures(1)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"device messages", testutil.ToFloat64(m.BusMessages.WithLabelValues("device")), 2},
		{"malformed messages", testutil.ToFloat64(m.BusMessages.WithLabelValues("malformed")), 1},
		{"commands", testutil.ToFloat64(m.ClientCommands.WithLabelValues("perintah")), 1},
		{"publish ok", testutil.ToFloat64(m.Publishes.WithLabelValues(ResultOK)), 1},
		{"publish failed", testutil.ToFloat64(m.Publishes.WithLabelValues(ResultFailed)), 1},
		{"evicted", testutil.ToFloat64(m.DevicesEvicted), 2},
		{"send failures", testutil.ToFloat64(m.BroadcastFailures), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestGauges(t *testing.T) {
	m := New(nil)

	m.SetClients(3)
	m.SetDevices(5)
	m.SetMQTTConnected(true)

	if got := testutil.ToFloat64(m.Clients); got != 3 {
		t.Errorf("clients = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Devices); got != 5 {
		t.Errorf("devices = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.MQTTConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}

	m.SetMQTTConnected(false)
	if got := testutil.ToFloat64(m.MQTTConnected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
}

func TestNilSafe(t *testing.T) {
	var m *Metrics

	m.BusMessage("device")
	m.ClientCommand("get_devices")
	m.Published(nil)
	m.SetClients(1)
	m.SetDevices(1)
	m.Evicted(1)
	m.SendFailures(1)
	m.SetMQTTConnected(true)
}
