// Package bridge connects the device bus to dashboard sessions.
//
// Three parts cooperate:
//
//   - BusSession subscribes to device data, device status, registry
//     announcements and broadcast commands, and publishes fire-and-forget.
//   - Roster tracks connected sessions and fans payloads out to the open ones,
//     dropping any session whose send fails.
//   - Router is the dispatch core. Every input, from the bus, a client or the
//     eviction sweeper, arrives as an Event and is handled by Dispatch.
//
// # Message Flow
//
//	device ─▶ broker ─▶ BusSession ─▶ Router ─┬─▶ Registry.Upsert
//	                                          └─▶ Roster.Broadcast
//
//	dashboard ─▶ Session ─▶ Router ─┬─▶ BusSession.Publish
//	                                ├─▶ Registry.Remove
//	                                └─▶ Session.Send (snapshot reply)
//
// For a single bus message the registry is always updated before the
// broadcast that reflects it, and device-list broadcasts are serialised so
// clients never receive an older snapshot after a newer one.
//
// # Wire Format
//
// Dashboards receive welcome, device_list and data envelopes; they send
// perintah, get_devices, request_devices, switch_device and delete_device.
// A missing brand or deviceId in a client command becomes "unknown", which
// matches what deployed dashboards and firmware expect.
package bridge
