package iothub

import (
	"errors"
	"testing"
)

// =============================================================================
// percentEncode Tests
// =============================================================================

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unreserved passthrough", "AZaz09-_.~", "AZaz09-_.~"},
		{"slash", "h.example.net/devices/dev1", "h.example.net%2Fdevices%2Fdev1"},
		{"base64 signature chars", "a+b/c=", "a%2Bb%2Fc%3D"},
		{"space", "a b", "a%20b"},
		{"empty", "", ""},
		{"uppercase hex", "\xff", "%FF"},
		{"control bytes", "\x00\x1f", "%00%1F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentEncode(tt.input); got != tt.want {
				t.Errorf("percentEncode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// =============================================================================
// percentDecode Tests
// =============================================================================

func TestPercentDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"plain",
		"h.example.net/devices/dev1",
		"!*'();:@&=+$,/?#[]",
		"sig+with/reserved=chars",
		"\x00\x01\xfe\xff",
		"unicode: héllo, 世界",
		"",
	}

	// Every reserved byte value, for completeness.
	var all []byte
	for b := 0; b < 256; b++ {
		all = append(all, byte(b))
	}
	inputs = append(inputs, string(all))

	for _, in := range inputs {
		got, err := percentDecode(percentEncode(in))
		if err != nil {
			t.Errorf("percentDecode(percentEncode(%q)) error = %v", in, err)
			continue
		}
		if got != in {
			t.Errorf("round trip of %q = %q", in, got)
		}
	}
}

func TestPercentDecodeLowercaseHex(t *testing.T) {
	got, err := percentDecode("%2fa%2b")
	if err != nil {
		t.Fatalf("percentDecode() error = %v", err)
	}
	if got != "/a+" {
		t.Errorf("percentDecode(%%2fa%%2b) = %q, want %q", got, "/a+")
	}
}

func TestPercentDecodeInvalid(t *testing.T) {
	tests := []string{"%", "%2", "%zz", "abc%G0"}

	for _, in := range tests {
		if _, err := percentDecode(in); !errors.Is(err, ErrInvalidEscape) {
			t.Errorf("percentDecode(%q) error = %v, want ErrInvalidEscape", in, err)
		}
	}
}
