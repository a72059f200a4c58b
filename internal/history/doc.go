// Package history mirrors published telemetry into a local InfluxDB
// instance for on-device inspection and gateway-side dashboards.
//
// The hub is the system of record; this mirror is best-effort and
// optional. Writes are non-blocking and batched, and the mirror being
// down never blocks or fails a hub publish.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//
// Usage:
//
//	hist, err := history.Connect(cfg.InfluxDB)
//	if errors.Is(err, history.ErrDisabled) {
//	    // run without the mirror
//	}
package history
