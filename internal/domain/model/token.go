package model

import "time"

// OAuth1Token is the short-lived token pair obtained by exchanging an SSO
// ticket. It exists only during the login handshake and is never persisted.
type OAuth1Token struct {
	Token  string
	Secret string
}

// OAuth2Token is the bearer/refresh pair used for authenticated API reads.
// ExpiresAt is computed once when the token is received (now + expires_in).
type OAuth2Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at the given instant,
// applying a safety buffer so a request signed moments before true expiry
// does not race the vendor's clock.
func (t OAuth2Token) Valid(now time.Time, buffer time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-buffer))
}
