package iothub

import (
	"strconv"
	"strings"
)

// MessageKind identifies what an inbound topic carries.
type MessageKind int

// Classification results, in routing priority order.
const (
	// KindUnclassified marks topics matching no known shape. They are
	// logged and dropped, never fatal.
	KindUnclassified MessageKind = iota

	// KindC2D is a cloud-to-device message.
	KindC2D

	// KindTwinResponse is a response to a twin GET or reported PATCH.
	KindTwinResponse

	// KindDesiredPatch is a desired-property update push.
	KindDesiredPatch
)

// String returns a short name for logging.
func (k MessageKind) String() string {
	switch k {
	case KindC2D:
		return "c2d"
	case KindTwinResponse:
		return "twin_response"
	case KindDesiredPatch:
		return "desired_patch"
	default:
		return "unclassified"
	}
}

// Inbound is one classified inbound message. It is ephemeral: handed to
// the registered callback and discarded. The payload is opaque bytes —
// never interpreted by this package.
type Inbound struct {
	Kind    MessageKind
	Topic   string
	Payload []byte

	// Status is the hub status code (twin responses only).
	Status int

	// RequestID is the correlation id from $rid= (twin responses only).
	// HasRequestID is false when the response carries no usable $rid;
	// such responses correlate to the most recently sent pending GET.
	RequestID    uint32
	HasRequestID bool

	// Version is the desired-property version from $version=
	// (desired patches only; 0 when absent).
	Version int
}

// Classify routes an inbound topic into exactly one message kind.
//
// Priority order:
//  1. Topic contains "/messages/devicebound/" → C2D (any trailing query
//     string passes through unparsed as part of the topic)
//  2. Prefix "$iothub/twin/res/" → twin response with parsed status
//  3. Prefix "$iothub/twin/PATCH/properties/desired/" → desired patch
//  4. Anything else → unclassified
//
// A twin-response topic whose status is not a valid integer has an
// unexpected shape and is returned unclassified.
func Classify(topic string, payload []byte) Inbound {
	in := Inbound{Kind: KindUnclassified, Topic: topic, Payload: payload}

	switch {
	case strings.Contains(topic, topicDeviceboundMarker):
		in.Kind = KindC2D

	case strings.HasPrefix(topic, topicTwinResPrefix):
		status, ok := parseStatus(topic[len(topicTwinResPrefix):])
		if !ok {
			return in
		}
		in.Kind = KindTwinResponse
		in.Status = status
		if raw, ok := queryValue(topic, "$rid"); ok {
			if rid, err := strconv.ParseUint(raw, 10, 32); err == nil {
				in.RequestID = uint32(rid)
				in.HasRequestID = true
			}
		}

	case strings.HasPrefix(topic, topicDesiredPrefix):
		in.Kind = KindDesiredPatch
		if raw, ok := queryValue(topic, "$version"); ok {
			if v, err := strconv.Atoi(raw); err == nil {
				in.Version = v
			}
		}
	}

	return in
}

// parseStatus reads the integer status code from the head of a twin
// response topic remainder (e.g. "200/?$rid=3").
func parseStatus(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	status, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return status, true
}

// queryValue extracts the value for key from the topic's trailing query
// string (after '?'), if present.
func queryValue(topic, key string) (string, bool) {
	_, query, ok := strings.Cut(topic, "?")
	if !ok {
		return "", false
	}
	for _, pair := range strings.Split(query, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}
