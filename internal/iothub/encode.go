package iothub

import "fmt"

// upperhex is the digit set for percent escapes. Azure SAS signatures
// require uppercase hex, which is why net/url (lowercase) is not used.
const upperhex = "0123456789ABCDEF"

// percentEncode encodes s per RFC 3986 for SAS token fields.
//
// Bytes in the unreserved set [A-Za-z0-9-_.~] pass through; every other
// byte becomes an uppercase %XX escape. The input is treated as raw
// bytes, not runes, so multi-byte UTF-8 sequences escape per byte.
func percentEncode(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b = append(b, c)
			continue
		}
		b = append(b, '%', upperhex[c>>4], upperhex[c&0x0f])
	}
	return string(b)
}

// percentDecode reverses percentEncode. It accepts both uppercase and
// lowercase hex escapes and returns ErrInvalidEscape for truncated or
// non-hex sequences.
func percentDecode(s string) (string, error) {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b = append(b, s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("%w: truncated escape at offset %d", ErrInvalidEscape, i)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidEscape, s[i:i+3], i)
		}
		b = append(b, hi<<4|lo)
		i += 2
	}
	return string(b), nil
}

// isUnreserved reports whether c is in the RFC 3986 unreserved set.
func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// unhex converts a hex digit to its value.
func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
