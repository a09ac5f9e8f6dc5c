package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TelemetryMeasurement is the measurement name for device payload fields.
const TelemetryMeasurement = "ac_telemetry"

// WriteDeviceTelemetry records the numeric and boolean top-level fields of a
// device payload as one point tagged with brand, device_id and channel.
//
// Strings, nested objects and non-finite numbers are skipped. A payload with
// nothing recordable writes nothing. The call never blocks.
//
// Example:
//
//	client.WriteDeviceTelemetry("daikin", "esp01", "data",
//	    map[string]any{"temperature": 24.5, "power": true}, time.Now())
func (c *Client) WriteDeviceTelemetry(brand, deviceID, channel string, payload map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := telemetryFields(payload)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		TelemetryMeasurement,
		map[string]string{
			"brand":     brand,
			"device_id": deviceID,
			"channel":   channel,
		},
		fields,
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// telemetryFields picks the numbers and booleans out of a decoded JSON
// object. encoding/json decodes every number as a finite float64.
func telemetryFields(payload map[string]any) map[string]any {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		switch v.(type) {
		case float64, bool:
			fields[k] = v
		}
	}
	return fields
}
