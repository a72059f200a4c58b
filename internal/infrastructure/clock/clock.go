package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Source supplies epoch seconds for token signing.
type Source interface {
	// Now returns the current epoch time in seconds.
	Now() (int64, error)
}

// SystemSource reads the local clock.
type SystemSource struct{}

// Now returns the local clock's epoch seconds. It never fails.
func (SystemSource) Now() (int64, error) {
	return time.Now().Unix(), nil
}

// NTPSource queries an NTP server on every call. Callers are expected
// to invoke it rarely (at startup and around token renewal), so no
// response caching is done here.
type NTPSource struct {
	server  string
	timeout time.Duration

	// query is swappable for tests.
	query func(server string, opts ntp.QueryOptions) (*ntp.Response, error)
}

// NewNTPSource creates a source that queries the given NTP server.
func NewNTPSource(server string, timeout time.Duration) *NTPSource {
	return &NTPSource{
		server:  server,
		timeout: timeout,
		query:   ntp.QueryWithOptions,
	}
}

// Now queries the NTP server and returns its epoch seconds.
func (s *NTPSource) Now() (int64, error) {
	resp, err := s.query(s.server, ntp.QueryOptions{Timeout: s.timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", s.server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response from %s: %w", s.server, err)
	}
	return resp.Time.Unix(), nil
}
