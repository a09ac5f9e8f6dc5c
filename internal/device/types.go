package device

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Defaults applied to fields a device never reported.
const (
	DefaultProtocol    = "unknown"
	DefaultSourceAgent = "unknown"
)

// Key identifies a device by brand and device ID. Device IDs are only
// unique within a brand.
type Key struct {
	Brand    string
	DeviceID string
}

// NewKey builds a Key.
func NewKey(brand, deviceID string) Key {
	return Key{Brand: brand, DeviceID: deviceID}
}

// ParseKey splits "brand/deviceId". Both parts must be non-empty.
func ParseKey(s string) (Key, error) {
	brand, id, ok := strings.Cut(s, "/")
	if !ok || brand == "" || id == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Brand: brand, DeviceID: id}, nil
}

// String returns the composite "brand/deviceId" form.
func (k Key) String() string {
	return k.Brand + "/" + k.DeviceID
}

// Valid reports whether both parts are present.
func (k Key) Valid() bool {
	return k.Brand != "" && k.DeviceID != ""
}

// Record is one device currently believed reachable.
//
// JSON names match what dashboards already consume; SourceAgent is sent as
// "espId" because the relay agents are ESP32 boards.
type Record struct {
	Brand       string    `json:"brand"`
	DeviceID    string    `json:"deviceId"`
	ButtonCount int       `json:"buttonCount"`
	Protocol    string    `json:"protocol"`
	UniqueCode  int64     `json:"uniqueCode"`
	SourceAgent string    `json:"espId"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Key returns the record's composite key.
func (r Record) Key() Key {
	return Key{Brand: r.Brand, DeviceID: r.DeviceID}
}

// Patch is a partial update. Nil fields leave the stored value untouched.
type Patch struct {
	ButtonCount *int
	Protocol    *string
	UniqueCode  *int64
	SourceAgent *string
}

// apply merges p into r.
func (p Patch) apply(r *Record) {
	if p.ButtonCount != nil && *p.ButtonCount >= 0 {
		r.ButtonCount = *p.ButtonCount
	}
	if p.Protocol != nil && *p.Protocol != "" {
		r.Protocol = *p.Protocol
	}
	if p.UniqueCode != nil {
		r.UniqueCode = *p.UniqueCode
	}
	if p.SourceAgent != nil && *p.SourceAgent != "" {
		r.SourceAgent = *p.SourceAgent
	}
}

// Announced is one entry of a relay agent's inventory announcement.
type Announced struct {
	Brand       string  `json:"brand"`
	DeviceID    string  `json:"deviceId"`
	ButtonCount *int    `json:"buttonCount,omitempty"`
	Protocol    *string `json:"protocol,omitempty"`
	UniqueCode  *int64  `json:"uniqueCode,omitempty"`
}

// UnmarshalJSON decodes one inventory entry field by field. A field with
// the wrong type or an out-of-range value is treated as absent, so one bad
// entry never fails the whole announcement. An entry that is not an object
// decodes to a keyless Announced, which the registry skips.
func (a *Announced) UnmarshalJSON(data []byte) error {
	*a = Announced{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil //nolint:nilerr // skipped by the registry as keyless
	}

	a.Brand = jsonString(fields["brand"])
	a.DeviceID = jsonString(fields["deviceId"])
	if n, ok := jsonInt(fields["buttonCount"]); ok && n >= 0 && n <= math.MaxInt32 {
		count := int(n)
		a.ButtonCount = &count
	}
	if proto := jsonString(fields["protocol"]); proto != "" {
		a.Protocol = &proto
	}
	if code, ok := jsonInt(fields["uniqueCode"]); ok {
		a.UniqueCode = &code
	}
	return nil
}

// jsonString returns raw as a string, or "" when it is not a JSON string.
func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// jsonInt accepts a JSON integer or a string holding a decimal, 0x hex or
// 0b binary integer, as agents send IR codes either way. Values outside
// int64 are rejected.
func jsonInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, err := n.Int64()
		return v, err == nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	return v, err == nil
}

// Key returns the announced device's composite key.
func (a Announced) Key() Key {
	return Key{Brand: a.Brand, DeviceID: a.DeviceID}
}

// patch converts the announced metadata into a Patch attributed to agentID.
func (a Announced) patch(agentID string) Patch {
	p := Patch{
		ButtonCount: a.ButtonCount,
		Protocol:    a.Protocol,
		UniqueCode:  a.UniqueCode,
	}
	if agentID != "" {
		p.SourceAgent = &agentID
	}
	return p
}
