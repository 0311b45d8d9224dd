package garmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// defaultExpiryBuffer is the margin before the advertised expiry at which a
// token is treated as expired, so a request signed moments before true
// expiry cannot race the vendor's clock.
const defaultExpiryBuffer = 5 * time.Minute

// tokenManager tracks the current OAuth2 token and serializes refreshes.
//
// Both refresh paths, the proactive expiry-buffer one in accessToken and the
// 401-forced one in forceRefresh, funnel through a single singleflight key:
// N concurrent callers hitting expiry trigger exactly one network refresh.
type tokenManager struct {
	mu      sync.Mutex
	token   *model.OAuth2Token
	buffer  time.Duration
	now     func() time.Time
	group   singleflight.Group
	refresh func(ctx context.Context, refreshToken string) (model.OAuth2Token, error)
	store   driven.TokenStore // may be nil; session is then memory-only
}

func newTokenManager(refresh func(context.Context, string) (model.OAuth2Token, error), store driven.TokenStore) *tokenManager {
	return &tokenManager{
		buffer:  defaultExpiryBuffer,
		now:     time.Now,
		refresh: refresh,
		store:   store,
	}
}

// current returns a copy of the held token, or nil when unauthenticated.
func (m *tokenManager) current() *model.OAuth2Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil
	}
	t := *m.token
	return &t
}

// set installs a fresh token and persists it. A persistence failure loses
// the bundle across restarts but never the live session, so it is logged
// rather than returned.
func (m *tokenManager) set(ctx context.Context, t model.OAuth2Token) {
	m.mu.Lock()
	m.token = &t
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, t); err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Warn("persist token bundle failed", "error", err)
	}
}

// adopt installs a previously persisted token without writing it back.
func (m *tokenManager) adopt(t model.OAuth2Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = &t
}

// clear drops the in-memory token and the persisted bundle.
func (m *tokenManager) clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return fmt.Errorf("clear token bundle: %w", err)
	}
	return nil
}

// accessToken returns a bearer token that is valid at call time, refreshing
// first if the current one is inside the expiry buffer.
func (m *tokenManager) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	if m.token.Valid(m.now(), m.buffer) {
		token := m.token.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken := m.token.RefreshToken
	m.mu.Unlock()

	return m.refreshNow(ctx, refreshToken)
}

// forceRefresh handles the out-of-band expiry signal: the vendor returned
// 401 for a token the manager believed valid. If another caller already
// replaced the stale token, the replacement is returned without a second
// network call; otherwise one refresh runs through the shared singleflight.
func (m *tokenManager) forceRefresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	if m.token.AccessToken != stale {
		token := m.token.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken := m.token.RefreshToken
	m.mu.Unlock()

	return m.refreshNow(ctx, refreshToken)
}

func (m *tokenManager) refreshNow(ctx context.Context, refreshToken string) (string, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		fresh, err := m.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		m.set(ctx, fresh)
		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return v.(string), nil
}
