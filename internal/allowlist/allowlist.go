package allowlist

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrHostNotAllowed is returned when a relay URL's host matches no allow-list
// entry. It fails config writes and, because the list may change between the
// write and the delivery, it is re-checked at resolution time.
var ErrHostNotAllowed = errors.New("relay host is not on the allow-list")

// List matches relay hosts against configured entries. An entry matches
// exactly, or as a domain suffix when it starts with a dot, so
// ".relay.example" matches "eu.relay.example" but not "relay.example.evil.com".
type List struct {
	entries []string
}

func New(entries []string) *List {
	cleaned := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &List{entries: cleaned}
}

// AllowsHost reports whether the bare host is allow-listed.
func (l *List) AllowsHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, e := range l.entries {
		if strings.HasPrefix(e, ".") {
			if strings.HasSuffix(host, e) {
				return true
			}
			continue
		}
		if host == e {
			return true
		}
	}
	return false
}

// ValidateURL parses rawURL and checks its host. Only http(s) schemes are
// accepted for relay endpoints.
func (l *List) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid relay url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid relay url scheme %q", u.Scheme)
	}
	if !l.AllowsHost(u.Hostname()) {
		return fmt.Errorf("host %q: %w", u.Hostname(), ErrHostNotAllowed)
	}
	return nil
}
