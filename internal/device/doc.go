// Package device provides the Device Registry for the AC bridge.
//
// The registry is the single source of truth for which air-conditioner
// controllers are currently reachable. Records are keyed by brand/deviceId,
// created on the first message or inventory announcement for a key, refreshed
// on every later message and evicted after a configurable period of silence.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        device package                         │
//	│                                                               │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────────┐  │
//	│  │   Registry   │◀──│   Sweeper    │   │  HistoryWriter   │  │
//	│  │ (registry.go)│   │ (sweeper.go) │   │   (history.go)   │  │
//	│  │              │   │              │   │                  │  │
//	│  │ • Upsert     │   │ • ticker     │   │ • async queue    │  │
//	│  │ • Announce   │   │ • EvictStale │   │ • SQLite store   │  │
//	│  │ • Snapshot   │   │ • onEvict    │   │ • GetHistory     │  │
//	│  └──────────────┘   └──────────────┘   └──────────────────┘  │
//	└──────────────────────────────────────────────────────────────┘
//
// # Merge Semantics
//
// Upsert never erases metadata. A bare data message for a known device only
// refreshes lastSeen; fields absent from a Patch keep their previous values
// and new records start from the defaults (protocol and espId "unknown").
// lastSeen never moves backwards for a key.
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	rec, created, err := registry.Upsert(device.NewKey("daikin", "esp01"), device.Patch{})
//
//	sweeper := device.NewSweeper(registry, 10*time.Second, 5*time.Minute,
//	    func(removed []device.Record) { /* notify clients */ })
//	go sweeper.Run(ctx)
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use and serialised by one
// mutex, so Snapshot never observes a half-applied announcement.
package device
