// Package spool provides a SQLite-backed store-and-forward queue for
// telemetry that could not be published while offline.
//
// Telemetry publishes are fire-and-forget at the protocol layer; the
// spool is the durability layer above it. When the hub is unreachable
// the application enqueues the event here, and drains the queue in
// batches after reconnecting. Events survive process restarts.
//
// The queue is bounded: once MaxEntries is reached the oldest events
// are dropped to make room, on the theory that recent telemetry is
// worth more than stale telemetry.
//
// Concurrency:
//   - Safe for use from a single goroutine. The device main loop owns
//     the spool; nothing else touches it.
//
// Usage:
//
//	sp, err := spool.Open(spool.Config{Path: "./data/spool.db", MaxEntries: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sp.Close()
//
//	sp.Enqueue(ctx, payload, "temperatureAlert=true")
package spool
