package iothub

import "errors"

// Domain-specific errors for IoT Hub operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingField is returned when a required connection-string field
	// (HostName, DeviceId, SharedAccessKey) is absent. Fatal to init.
	ErrMissingField = errors.New("iothub: missing connection string field")

	// ErrFieldTooLong is returned when a connection-string field exceeds
	// its size cap. Fields are never silently truncated.
	ErrFieldTooLong = errors.New("iothub: connection string field too long")

	// ErrDuplicateField is returned when a required key appears more than
	// once in the connection string.
	ErrDuplicateField = errors.New("iothub: duplicate connection string field")

	// ErrMalformedPair is returned when a connection-string segment is not
	// a key=value pair.
	ErrMalformedPair = errors.New("iothub: malformed connection string pair")

	// ErrInvalidKey is returned when the shared access key is not valid
	// base64. Fatal — no token can ever be generated from it.
	ErrInvalidKey = errors.New("iothub: shared access key is not valid base64")

	// ErrInvalidEscape is returned by percent-decoding for malformed
	// %XX escape sequences.
	ErrInvalidEscape = errors.New("iothub: invalid percent escape")

	// ErrNotInitialized is returned when Connect is called before Init.
	ErrNotInitialized = errors.New("iothub: session not initialized")

	// ErrNotConnected is returned when attempting operations that require
	// an active hub connection.
	ErrNotConnected = errors.New("iothub: not connected")

	// ErrConnectionFailed is returned when the bounded connect sequence
	// exhausts all attempts.
	ErrConnectionFailed = errors.New("iothub: connection failed")

	// ErrTLSProbeFailed is returned when the TLS reachability probe fails
	// (including the insecure fallback, when permitted).
	ErrTLSProbeFailed = errors.New("iothub: tls probe failed")

	// ErrTwinBusy is returned when a full-twin GET is requested while a
	// previous GET is still pending. The protocol supports only one
	// outstanding full-twin fetch.
	ErrTwinBusy = errors.New("iothub: twin get already pending")

	// ErrPublishFailed is returned when a publish is rejected by the
	// transport. There is no delivery retry at this layer.
	ErrPublishFailed = errors.New("iothub: publish failed")
)
