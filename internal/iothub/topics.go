package iothub

import "fmt"

// Fixed topic prefixes and filters defined by the hub's MQTT surface.
// The $iothub topics are hub-global and carry no device id; the
// devices/... topics are scoped to one device.
const (
	// topicTwinResPrefix prefixes every twin GET/PATCH response.
	// The integer status code follows immediately.
	topicTwinResPrefix = "$iothub/twin/res/"

	// topicDesiredPrefix prefixes desired-property update pushes.
	topicDesiredPrefix = "$iothub/twin/PATCH/properties/desired/"

	// topicDeviceboundMarker appears in every C2D message topic.
	topicDeviceboundMarker = "/messages/devicebound/"

	// TwinResponseFilter is the subscription filter for twin responses.
	TwinResponseFilter = "$iothub/twin/res/#"

	// DesiredPropertiesFilter is the subscription filter for
	// desired-property update pushes.
	DesiredPropertiesFilter = "$iothub/twin/PATCH/properties/desired/#"
)

// Topics builds the device-scoped MQTT topics for one device identity.
// Using these helpers keeps topic shapes consistent with the hub's
// naming conventions.
//
//	topics := iothub.Topics{DeviceID: "dev1"}
//	topics.Telemetry("")  // "devices/dev1/messages/events/"
type Topics struct {
	DeviceID string
}

// Telemetry returns the D2C event publish topic. properties, when
// non-empty, is an already URL-encoded property bag appended verbatim
// (e.g. "temperatureAlert=true").
func (t Topics) Telemetry(properties string) string {
	return fmt.Sprintf("devices/%s/messages/events/%s", t.DeviceID, properties)
}

// C2DFilter returns the subscription filter for cloud-to-device
// messages.
//
// Pattern: devices/{d}/messages/devicebound/#
func (t Topics) C2DFilter() string {
	return fmt.Sprintf("devices/%s/messages/devicebound/#", t.DeviceID)
}

// TwinGet returns the publish topic requesting the full device twin.
//
// Example: $iothub/twin/GET/?$rid=3
func (t Topics) TwinGet(rid uint32) string {
	return fmt.Sprintf("$iothub/twin/GET/?$rid=%d", rid)
}

// ReportedPatch returns the publish topic for reported-property
// updates.
//
// Example: $iothub/twin/PATCH/properties/reported/?$rid=4
func (t Topics) ReportedPatch(rid uint32) string {
	return fmt.Sprintf("$iothub/twin/PATCH/properties/reported/?$rid=%d", rid)
}

// Username returns the MQTT CONNECT username for this device.
//
// Example: myhub.azure-devices.net/dev1/?api-version=2021-04-12
func (t Topics) Username(hostName, apiVersion string) string {
	return fmt.Sprintf("%s/%s/?api-version=%s", hostName, t.DeviceID, apiVersion)
}
