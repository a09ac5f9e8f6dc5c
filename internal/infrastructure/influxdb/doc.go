// Package influxdb provides the optional telemetry sink for device payloads.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Purpose
//
// Numeric and boolean fields from device data messages are stored as points
// in the ac_telemetry measurement, tagged with brand, device_id and channel.
// Registry state is not written here.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteDeviceTelemetry("daikin", "esp01", "data", payload, time.Now())
//
// # Error Handling
//
// Write failures are delivered asynchronously through SetOnError. Connection
// and health check errors are returned directly.
package influxdb
