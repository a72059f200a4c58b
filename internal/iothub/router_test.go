package iothub

import "testing"

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassifyC2D(t *testing.T) {
	in := Classify("devices/dev1/messages/devicebound/xyz", []byte("hello"))

	if in.Kind != KindC2D {
		t.Fatalf("Kind = %v, want KindC2D", in.Kind)
	}
	if in.Topic != "devices/dev1/messages/devicebound/xyz" {
		t.Errorf("Topic = %q, topic must pass through untouched", in.Topic)
	}
	if string(in.Payload) != "hello" {
		t.Errorf("Payload = %q, want %q", in.Payload, "hello")
	}
}

// C2D topics often carry an encoded property bag; it stays unparsed.
func TestClassifyC2DWithQueryString(t *testing.T) {
	topic := "devices/dev1/messages/devicebound/%24.mid=abc&prop=1"
	in := Classify(topic, nil)

	if in.Kind != KindC2D {
		t.Fatalf("Kind = %v, want KindC2D", in.Kind)
	}
	if in.Topic != topic {
		t.Errorf("Topic = %q, query string must pass through unparsed", in.Topic)
	}
}

func TestClassifyTwinResponse(t *testing.T) {
	in := Classify("$iothub/twin/res/200/?$rid=3", []byte(`{"desired":{}}`))

	if in.Kind != KindTwinResponse {
		t.Fatalf("Kind = %v, want KindTwinResponse", in.Kind)
	}
	if in.Status != 200 {
		t.Errorf("Status = %d, want 200", in.Status)
	}
	if !in.HasRequestID || in.RequestID != 3 {
		t.Errorf("RequestID = %d (has=%v), want 3", in.RequestID, in.HasRequestID)
	}
}

func TestClassifyTwinResponseWithoutRid(t *testing.T) {
	in := Classify("$iothub/twin/res/204/", nil)

	if in.Kind != KindTwinResponse {
		t.Fatalf("Kind = %v, want KindTwinResponse", in.Kind)
	}
	if in.Status != 204 {
		t.Errorf("Status = %d, want 204", in.Status)
	}
	if in.HasRequestID {
		t.Error("HasRequestID = true, want false")
	}
}

func TestClassifyTwinResponseNonNumericRid(t *testing.T) {
	in := Classify("$iothub/twin/res/200/?$rid=abc", nil)

	if in.Kind != KindTwinResponse {
		t.Fatalf("Kind = %v, want KindTwinResponse", in.Kind)
	}
	if in.HasRequestID {
		t.Error("non-numeric $rid must be treated as absent")
	}
}

func TestClassifyTwinResponseMalformedStatus(t *testing.T) {
	in := Classify("$iothub/twin/res/notanumber/?$rid=3", nil)

	if in.Kind != KindUnclassified {
		t.Errorf("Kind = %v, want KindUnclassified for malformed status", in.Kind)
	}
}

func TestClassifyDesiredPatch(t *testing.T) {
	in := Classify("$iothub/twin/PATCH/properties/desired/?$version=5", []byte(`{"interval":30}`))

	if in.Kind != KindDesiredPatch {
		t.Fatalf("Kind = %v, want KindDesiredPatch", in.Kind)
	}
	if in.Version != 5 {
		t.Errorf("Version = %d, want 5", in.Version)
	}
}

func TestClassifyDesiredPatchDefaultVersion(t *testing.T) {
	in := Classify("$iothub/twin/PATCH/properties/desired/", nil)

	if in.Kind != KindDesiredPatch {
		t.Fatalf("Kind = %v, want KindDesiredPatch", in.Kind)
	}
	if in.Version != 0 {
		t.Errorf("Version = %d, want 0 when $version is absent", in.Version)
	}
}

func TestClassifyUnclassified(t *testing.T) {
	topics := []string{
		"devices/dev1/messages/events/",
		"$iothub/methods/POST/reboot/?$rid=1",
		"random/topic",
		"",
	}

	for _, topic := range topics {
		if in := Classify(topic, nil); in.Kind != KindUnclassified {
			t.Errorf("Classify(%q).Kind = %v, want KindUnclassified", topic, in.Kind)
		}
	}
}

// Priority: the devicebound marker wins even under a $iothub-ish shape.
func TestClassifyPriorityOrder(t *testing.T) {
	in := Classify("x/messages/devicebound/$iothub/twin/res/200", nil)
	if in.Kind != KindC2D {
		t.Errorf("Kind = %v, want KindC2D (devicebound marker has priority)", in.Kind)
	}
}

func TestMessageKindString(t *testing.T) {
	tests := []struct {
		kind MessageKind
		want string
	}{
		{KindC2D, "c2d"},
		{KindTwinResponse, "twin_response"},
		{KindDesiredPatch, "desired_patch"},
		{KindUnclassified, "unclassified"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := Topics{DeviceID: "dev1"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", topics.Telemetry(""), "devices/dev1/messages/events/"},
		{"telemetry with props", topics.Telemetry("temperatureAlert=true"), "devices/dev1/messages/events/temperatureAlert=true"},
		{"c2d filter", topics.C2DFilter(), "devices/dev1/messages/devicebound/#"},
		{"twin get", topics.TwinGet(7), "$iothub/twin/GET/?$rid=7"},
		{"reported patch", topics.ReportedPatch(8), "$iothub/twin/PATCH/properties/reported/?$rid=8"},
		{"username", topics.Username("h.example.net", "2021-04-12"), "h.example.net/dev1/?api-version=2021-04-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
