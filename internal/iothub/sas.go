package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Token is a generated Shared Access Signature.
//
// A Token does not self-expire: callers compare Expiry against the
// current time (plus a safety margin) before reuse and regenerate when
// stale. See ExpiresWithin.
type Token struct {
	// ResourceURI is the percent-encoded resource URI the token signs.
	ResourceURI string

	// Expiry is the Unix epoch second after which the token is invalid.
	Expiry int64

	// Signature is the percent-encoded, base64 HMAC-SHA256 signature.
	Signature string
}

// String assembles the SAS token in the form the hub expects as the
// MQTT CONNECT password:
//
//	SharedAccessSignature sr={uri}&sig={sig}&se={expiry}
func (t Token) String() string {
	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%d", t.ResourceURI, t.Signature, t.Expiry)
}

// ExpiresWithin reports whether the token expires at or before
// now+margin. Callers regenerate rather than present a token that
// could lapse mid-handshake.
func (t Token) ExpiresWithin(now int64, margin time.Duration) bool {
	return now+int64(margin.Seconds()) >= t.Expiry
}

// GenerateToken produces a SAS token for the given credentials and
// expiry epoch.
//
// The procedure, fixed by the hub's SAS scheme:
//  1. Percent-encode the resource URI "{hostname}/devices/{deviceId}"
//  2. Sign "{encodedURI}\n{expiry}" with HMAC-SHA256 using the
//     base64-decoded device key
//  3. Base64-encode the signature, then percent-encode it
//
// Generation is deterministic: identical inputs yield a byte-identical
// token.
//
// Returns:
//   - Token: The signed token
//   - error: ErrInvalidKey if the shared access key is malformed base64
func GenerateToken(creds Credentials, expiry int64) (Token, error) {
	key, err := base64.StdEncoding.DecodeString(creds.SharedAccessKey())
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	encodedURI := percentEncode(creds.ResourceURI())

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signingString(encodedURI, expiry)))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Token{
		ResourceURI: encodedURI,
		Expiry:      expiry,
		Signature:   percentEncode(signature),
	}, nil
}

// signingString builds the exact byte sequence that is HMAC-signed.
func signingString(encodedURI string, expiry int64) string {
	return encodedURI + "\n" + strconv.FormatInt(expiry, 10)
}
