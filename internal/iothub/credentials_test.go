package iothub

import (
	"errors"
	"strings"
	"testing"
)

const testConnString = "HostName=h.example.net;DeviceId=dev1;SharedAccessKey=AAAAAAAAAAAAAAAAAAAAAA=="

// =============================================================================
// ParseConnectionString Tests
// =============================================================================

func TestParseConnectionString(t *testing.T) {
	creds, err := ParseConnectionString(testConnString)
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}

	if creds.HostName() != "h.example.net" {
		t.Errorf("HostName() = %q, want %q", creds.HostName(), "h.example.net")
	}
	if creds.DeviceID() != "dev1" {
		t.Errorf("DeviceID() = %q, want %q", creds.DeviceID(), "dev1")
	}
	if creds.SharedAccessKey() != "AAAAAAAAAAAAAAAAAAAAAA==" {
		t.Errorf("SharedAccessKey() = %q, want %q", creds.SharedAccessKey(), "AAAAAAAAAAAAAAAAAAAAAA==")
	}
}

func TestParseConnectionStringAnyOrder(t *testing.T) {
	orders := []string{
		"HostName=h.example.net;DeviceId=dev1;SharedAccessKey=a2V5",
		"DeviceId=dev1;SharedAccessKey=a2V5;HostName=h.example.net",
		"SharedAccessKey=a2V5;HostName=h.example.net;DeviceId=dev1",
	}

	for _, s := range orders {
		creds, err := ParseConnectionString(s)
		if err != nil {
			t.Errorf("ParseConnectionString(%q) error = %v", s, err)
			continue
		}
		if creds.HostName() != "h.example.net" || creds.DeviceID() != "dev1" || creds.SharedAccessKey() != "a2V5" {
			t.Errorf("ParseConnectionString(%q) recovered wrong fields: %+v", s, creds)
		}
	}
}

func TestParseConnectionStringMissingField(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		missing string
	}{
		{"no hostname", "DeviceId=dev1;SharedAccessKey=a2V5", "HostName"},
		{"no device id", "HostName=h.example.net;SharedAccessKey=a2V5", "DeviceId"},
		{"no key", "HostName=h.example.net;DeviceId=dev1", "SharedAccessKey"},
		{"empty value", "HostName=;DeviceId=dev1;SharedAccessKey=a2V5", "HostName"},
		{"empty string", "", "HostName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConnectionString(tt.input)
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("ParseConnectionString() error = %v, want ErrMissingField", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error %q does not name field %q", err, tt.missing)
			}
		})
	}
}

func TestParseConnectionStringDuplicateField(t *testing.T) {
	_, err := ParseConnectionString("HostName=a;HostName=b;DeviceId=dev1;SharedAccessKey=a2V5")
	if !errors.Is(err, ErrDuplicateField) {
		t.Errorf("ParseConnectionString() error = %v, want ErrDuplicateField", err)
	}
}

func TestParseConnectionStringFieldTooLong(t *testing.T) {
	long := strings.Repeat("x", maxDeviceIDLen+1)
	_, err := ParseConnectionString("HostName=h.example.net;DeviceId=" + long + ";SharedAccessKey=a2V5")
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("ParseConnectionString() error = %v, want ErrFieldTooLong", err)
	}
	if !strings.Contains(err.Error(), "DeviceId") {
		t.Errorf("error %q does not name the oversized field", err)
	}
}

func TestParseConnectionStringMalformedPair(t *testing.T) {
	_, err := ParseConnectionString("HostName=h.example.net;garbage;DeviceId=dev1;SharedAccessKey=a2V5")
	if !errors.Is(err, ErrMalformedPair) {
		t.Errorf("ParseConnectionString() error = %v, want ErrMalformedPair", err)
	}
}

func TestParseConnectionStringIgnoresUnknownKeys(t *testing.T) {
	creds, err := ParseConnectionString("HostName=h.example.net;SharedAccessKeyName=device;DeviceId=dev1;SharedAccessKey=a2V5;")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if creds.DeviceID() != "dev1" {
		t.Errorf("DeviceID() = %q, want %q", creds.DeviceID(), "dev1")
	}
}

// Base64 values embed '='; only the first '=' splits key from value.
func TestParseConnectionStringKeyWithPadding(t *testing.T) {
	creds, err := ParseConnectionString("HostName=h;DeviceId=d;SharedAccessKey=AAAA==")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if creds.SharedAccessKey() != "AAAA==" {
		t.Errorf("SharedAccessKey() = %q, want %q", creds.SharedAccessKey(), "AAAA==")
	}
}

func TestResourceURI(t *testing.T) {
	creds, err := ParseConnectionString(testConnString)
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if got := creds.ResourceURI(); got != "h.example.net/devices/dev1" {
		t.Errorf("ResourceURI() = %q, want %q", got, "h.example.net/devices/dev1")
	}
}
