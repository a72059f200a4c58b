package history

import "errors"

// Sentinel errors for history-mirror operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, history.ErrDisabled) {
//	    // run without the mirror
//	}
var (
	// ErrNotConnected indicates the mirror is not connected to InfluxDB.
	ErrNotConnected = errors.New("history: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")

	// ErrDisabled indicates the history mirror is disabled in config.
	ErrDisabled = errors.New("history: disabled in configuration")
)
