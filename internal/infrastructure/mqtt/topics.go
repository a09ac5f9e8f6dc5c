package mqtt

import (
	"fmt"
	"strings"
)

// Device channels carried in the fourth topic segment.
const (
	ChannelData    = "data"
	ChannelStatus  = "status"
	ChannelCommand = "cmd"
)

// DefaultNamespace is the first topic segment used by deployed AC firmware.
const DefaultNamespace = "ac"

// TopicKind classifies a parsed topic.
type TopicKind int

const (
	// TopicDevice is <ns>/<brand>/<deviceId>/<channel>[/...].
	TopicDevice TopicKind = iota

	// TopicRegistry is <ns>/broadcast/registry.
	TopicRegistry

	// TopicBroadcastCommand is <ns>/broadcast/cmd.
	TopicBroadcastCommand
)

// String returns a short label, used in logs.
func (k TopicKind) String() string {
	switch k {
	case TopicDevice:
		return "device"
	case TopicRegistry:
		return "registry"
	case TopicBroadcastCommand:
		return "broadcast_cmd"
	default:
		return fmt.Sprintf("TopicKind(%d)", int(k))
	}
}

// Topic is the decoded form of an inbound topic string.
// Brand, DeviceID and Channel are set only for TopicDevice.
type Topic struct {
	Kind     TopicKind
	Brand    string
	DeviceID string
	Channel  string
}

// Topics builds and parses the topic scheme for one namespace.
//
//	topics := mqtt.NewTopics("ac")
//	topics.Command("daikin", "esp01") // "ac/daikin/esp01/cmd"
//	topics.DataPattern()              // "ac/+/+/data"
type Topics struct {
	Namespace string
}

// NewTopics returns a Topics for ns, falling back to DefaultNamespace.
func NewTopics(ns string) Topics {
	if ns == "" {
		ns = DefaultNamespace
	}
	return Topics{Namespace: ns}
}

// Command returns the per-device command topic.
//
// Example: ac/daikin/esp01/cmd
func (t Topics) Command(brand, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.Namespace, brand, deviceID, ChannelCommand)
}

// DataPattern matches every device's data channel.
func (t Topics) DataPattern() string {
	return fmt.Sprintf("%s/+/+/%s", t.Namespace, ChannelData)
}

// StatusPattern matches every device's status channel.
func (t Topics) StatusPattern() string {
	return fmt.Sprintf("%s/+/+/%s", t.Namespace, ChannelStatus)
}

// Registry is where agents publish device announcements.
func (t Topics) Registry() string {
	return t.Namespace + "/broadcast/registry"
}

// BroadcastCommand is where system directives to all agents are published.
func (t Topics) BroadcastCommand() string {
	return t.Namespace + "/broadcast/cmd"
}

// Parse decodes an inbound topic.
//
// The exact broadcast topics are recognised first. Anything else must have at
// least four segments, start with the namespace and carry a non-empty brand
// and device ID, or ErrMalformedTopic is returned. Segments past the fourth
// are ignored.
func (t Topics) Parse(s string) (Topic, error) {
	switch s {
	case t.Registry():
		return Topic{Kind: TopicRegistry}, nil
	case t.BroadcastCommand():
		return Topic{Kind: TopicBroadcastCommand}, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) < 4 {
		return Topic{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedTopic, s, len(parts))
	}
	if parts[0] != t.Namespace {
		return Topic{}, fmt.Errorf("%w: %q is outside namespace %q", ErrMalformedTopic, s, t.Namespace)
	}
	if parts[1] == "" || parts[2] == "" {
		return Topic{}, fmt.Errorf("%w: %q has an empty brand or device id", ErrMalformedTopic, s)
	}

	return Topic{
		Kind:     TopicDevice,
		Brand:    parts[1],
		DeviceID: parts[2],
		Channel:  parts[3],
	}, nil
}
