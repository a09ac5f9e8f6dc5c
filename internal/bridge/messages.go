package bridge

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/ac-bridge/internal/device"
)

// Client → server message types.
const (
	TypeCommand        = "perintah"
	TypeGetDevices     = "get_devices"
	TypeRequestDevices = "request_devices"
	TypeSwitchDevice   = "switch_device"
	TypeDeleteDevice   = "delete_device"
)

// Server → client and bus message types.
const (
	TypeWelcome        = "welcome"
	TypeDeviceList     = "device_list"
	TypeData           = "data"
	TypeSystem         = "system"
	TypeDeviceRegistry = "device_registry"
)

// Directives published on the broadcast command topic.
const (
	DirectiveRequestDevices = "REQUEST_DEVICES"
	DirectiveSwitchDevice   = "SWITCH_DEVICE"
	DirectiveDeleteDevice   = "DELETE_DEVICE"
)

// WelcomeMessage is the dashboards' existing greeting text.
const WelcomeMessage = "Selamat datang di Smart AC Multi-Device System"

// unknownIdentity replaces a missing brand or deviceId in client commands.
const unknownIdentity = "unknown"

// welcome is sent to a session right after it connects.
type welcome struct {
	Type        string          `json:"type"`
	Message     string          `json:"message"`
	ClientCount int             `json:"clientCount"`
	Devices     []device.Record `json:"devices"`
}

// deviceList carries a full registry snapshot.
type deviceList struct {
	Type    string          `json:"type"`
	Devices []device.Record `json:"devices"`
}

// dataEnvelope wraps a device message for dashboards.
type dataEnvelope struct {
	Type        string `json:"type"`
	Brand       string `json:"brand"`
	DeviceID    string `json:"deviceId"`
	MessageType string `json:"messageType"`
	Data        any    `json:"data"`
	Timestamp   string `json:"timestamp"`
}

// clientMessage is any frame a dashboard sends. Temperature and Timestamp
// are forwarded to the device untouched.
type clientMessage struct {
	Type        string          `json:"type"`
	Brand       string          `json:"brand"`
	DeviceID    string          `json:"deviceId"`
	Command     string          `json:"command"`
	Temperature json.RawMessage `json:"temperature,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

// key returns the target device, defaulting absent parts to "unknown".
func (m clientMessage) key() device.Key {
	brand, id := m.Brand, m.DeviceID
	if brand == "" {
		brand = unknownIdentity
	}
	if id == "" {
		id = unknownIdentity
	}
	return device.NewKey(brand, id)
}

// deviceCommand is published on <ns>/<brand>/<deviceId>/cmd.
type deviceCommand struct {
	Type        string          `json:"type"`
	Command     string          `json:"command"`
	Temperature json.RawMessage `json:"temperature,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

// directive is published on <ns>/broadcast/cmd.
type directive struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	Brand     string `json:"brand,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// announcement is a relay agent's inventory on <ns>/broadcast/registry.
// Devices is nil when the field is absent.
// EspID and TotalDevices are informational and accepted in any JSON type;
// entries are decoded one by one (see device.Announced).
type announcement struct {
	EspID        json.RawMessage    `json:"esp_id"`
	TotalDevices json.RawMessage    `json:"total_devices"`
	Type         json.RawMessage    `json:"type"`
	Devices      []device.Announced `json:"devices"`
}

// kind returns the message type, or "" when it is not a string.
func (a announcement) kind() string {
	var s string
	_ = json.Unmarshal(a.Type, &s) //nolint:errcheck // non-strings are not registry messages
	return s
}

// agentID returns esp_id as text. Numeric IDs are kept as written.
func (a announcement) agentID() string {
	var s string
	if err := json.Unmarshal(a.EspID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(a.EspID, &n); err == nil {
		return n.String()
	}
	return ""
}

// isoMillis matches the timestamps dashboards already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
