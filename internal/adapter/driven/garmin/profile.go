package garmin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// nameStrategy is one way of resolving the account's display name, which
// several per-date endpoints embed in their path.
type nameStrategy struct {
	name    string
	resolve func(ctx context.Context) (string, error)
}

// profileResolver tries an ordered list of strategies with first success
// short-circuiting, and caches the winner for the life of the session.
// Individual strategies fail soft; only full exhaustion is an error.
type profileResolver struct {
	mu         sync.Mutex
	cached     string
	strategies []nameStrategy
}

func (r *profileResolver) displayName(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached, nil
	}

	for _, s := range r.strategies {
		name, err := s.resolve(ctx)
		if err != nil {
			slog.Debug("display name strategy failed", "strategy", s.name, "error", err)
			continue
		}
		if name == "" {
			continue
		}
		r.cached = name
		return name, nil
	}

	return "", ErrDisplayNameUnavailable
}

// reset drops the cached name, used on logout and login.
func (r *profileResolver) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = ""
}

// nameStrategies builds the ordered resolution chain:
// social profile -> personal profile -> JWT claim.
func (c *Client) nameStrategies() []nameStrategy {
	return []nameStrategy{
		{name: "social_profile", resolve: c.nameFromSocialProfile},
		{name: "personal_profile", resolve: c.nameFromPersonalProfile},
		{name: "jwt_claim", resolve: c.nameFromTokenClaim},
	}
}

func (c *Client) nameFromSocialProfile(ctx context.Context) (string, error) {
	var payload struct {
		DisplayName string `json:"displayName"`
	}
	found, err := c.getJSON(ctx, "/userprofile-service/socialProfile", nil, &payload)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return payload.DisplayName, nil
}

func (c *Client) nameFromPersonalProfile(ctx context.Context) (string, error) {
	var payload struct {
		DisplayName string `json:"displayName"`
	}
	found, err := c.getJSON(ctx, "/userprofile-service/userprofile/personal-information", url.Values{}, &payload)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return payload.DisplayName, nil
}

// nameFromTokenClaim decodes the access token's claims without verifying
// the signature; the token came straight from the vendor and only public
// claims are read. Any decode failure is soft.
func (c *Client) nameFromTokenClaim(_ context.Context) (string, error) {
	t := c.tokens.current()
	if t == nil {
		return "", ErrNotAuthenticated
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err != nil {
		return "", fmt.Errorf("decode access token claims: %w", err)
	}

	if name, ok := claims["garmin_guid"].(string); ok && name != "" {
		return name, nil
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub, nil
	}
	return "", nil
}
