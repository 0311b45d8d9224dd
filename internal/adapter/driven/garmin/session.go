package garmin

import (
	"net/http"
	"sort"
	"strings"
)

// sessionState holds the cookie map and CSRF token accumulated across the
// SSO login steps. It is scoped to a single login attempt and never reused.
type sessionState struct {
	cookies map[string]string
	csrf    string
}

func newSessionState() *sessionState {
	return &sessionState{cookies: make(map[string]string)}
}

// absorb merges every Set-Cookie from the response into the cookie map,
// last write wins.
func (s *sessionState) absorb(resp *http.Response) {
	for _, c := range resp.Cookies() {
		s.cookies[c.Name] = c.Value
	}
}

// cookieHeader renders the accumulated cookies as a Cookie header value.
// Names are sorted so the header is deterministic.
func (s *sessionState) cookieHeader() string {
	if len(s.cookies) == 0 {
		return ""
	}

	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+s.cookies[name])
	}
	return strings.Join(parts, "; ")
}
