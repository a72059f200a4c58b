package iothub

import (
	"fmt"
	"strings"
)

// Connection string field names as they appear in the Azure portal.
const (
	fieldHostName  = "HostName"
	fieldDeviceID  = "DeviceId"
	fieldSharedKey = "SharedAccessKey"
)

// Field size caps. The caps bound untrusted input; oversized fields fail
// with ErrFieldTooLong rather than being truncated.
const (
	maxHostNameLen  = 127
	maxDeviceIDLen  = 63
	maxSharedKeyLen = 255
)

// Credentials is the parsed, immutable device identity.
// All fields are guaranteed non-empty after a successful parse.
type Credentials struct {
	hostName  string
	deviceID  string
	sharedKey string
}

// HostName returns the IoT Hub hostname (e.g. "myhub.azure-devices.net").
func (c Credentials) HostName() string { return c.hostName }

// DeviceID returns the device identifier registered with the hub.
func (c Credentials) DeviceID() string { return c.deviceID }

// SharedAccessKey returns the base64-encoded device key.
func (c Credentials) SharedAccessKey() string { return c.sharedKey }

// ResourceURI returns the unencoded SAS resource URI for this identity:
// "{hostname}/devices/{deviceId}".
func (c Credentials) ResourceURI() string {
	return fmt.Sprintf("%s/devices/%s", c.hostName, c.deviceID)
}

// ParseConnectionString parses an Azure IoT Hub device connection string
// into Credentials.
//
// The input is a ';'-delimited sequence of key=value pairs. HostName,
// DeviceId, and SharedAccessKey must each appear exactly once, in any
// order. Unrecognised keys (e.g. SharedAccessKeyName on hub-scoped
// strings) are ignored. Empty segments from a trailing ';' are skipped.
//
// Returns:
//   - Credentials: Immutable identity with all three fields populated
//   - error: ErrMissingField, ErrDuplicateField, ErrFieldTooLong, or
//     ErrMalformedPair, wrapped with the offending field name
func ParseConnectionString(s string) (Credentials, error) {
	var creds Credentials
	seen := map[string]bool{}

	for _, segment := range strings.Split(s, ";") {
		if segment == "" {
			continue
		}

		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return Credentials{}, fmt.Errorf("%w: %q", ErrMalformedPair, segment)
		}

		var dst *string
		var maxLen int
		switch key {
		case fieldHostName:
			dst, maxLen = &creds.hostName, maxHostNameLen
		case fieldDeviceID:
			dst, maxLen = &creds.deviceID, maxDeviceIDLen
		case fieldSharedKey:
			dst, maxLen = &creds.sharedKey, maxSharedKeyLen
		default:
			continue
		}

		if seen[key] {
			return Credentials{}, fmt.Errorf("%w: %s", ErrDuplicateField, key)
		}
		seen[key] = true

		if len(value) > maxLen {
			return Credentials{}, fmt.Errorf("%w: %s (%d bytes, max %d)", ErrFieldTooLong, key, len(value), maxLen)
		}
		*dst = value
	}

	// An empty value is as absent as a missing key.
	for _, field := range []struct {
		name  string
		value string
	}{
		{fieldHostName, creds.hostName},
		{fieldDeviceID, creds.deviceID},
		{fieldSharedKey, creds.sharedKey},
	} {
		if field.value == "" {
			return Credentials{}, fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}

	return creds, nil
}
