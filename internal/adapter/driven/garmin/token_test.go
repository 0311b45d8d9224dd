package garmin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// fakeTokenStore records persistence calls for token manager tests.
type fakeTokenStore struct {
	mu     sync.Mutex
	saved  *model.OAuth2Token
	saves  int
	clears int
	err    error
}

func (f *fakeTokenStore) Save(_ context.Context, t model.OAuth2Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = &t
	f.saves++
	return nil
}

func (f *fakeTokenStore) Load(_ context.Context) (*model.OAuth2Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, f.err
}

func (f *fakeTokenStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = nil
	f.clears++
	return f.err
}

func validToken(access string) model.OAuth2Token {
	return model.OAuth2Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func expiredToken(access string) model.OAuth2Token {
	t := validToken(access)
	t.ExpiresAt = time.Now().Add(-time.Minute)
	return t
}

func TestAccessToken_NotAuthenticated(t *testing.T) {
	m := newTokenManager(nil, nil)

	_, err := m.accessToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAccessToken_ValidTokenReturnedWithoutRefresh(t *testing.T) {
	var calls int32
	m := newTokenManager(func(_ context.Context, _ string) (model.OAuth2Token, error) {
		atomic.AddInt32(&calls, 1)
		return validToken("fresh"), nil
	}, nil)
	m.adopt(validToken("current"))

	got, err := m.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current", got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAccessToken_TokenInsideBufferIsRefreshed(t *testing.T) {
	m := newTokenManager(func(_ context.Context, refreshToken string) (model.OAuth2Token, error) {
		assert.Equal(t, "refresh-1", refreshToken)
		return validToken("fresh"), nil
	}, nil)

	// Expires within the 5-minute buffer, so still nominally unexpired.
	soon := validToken("stale")
	soon.ExpiresAt = time.Now().Add(time.Minute)
	m.adopt(soon)

	got, err := m.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls int32
	m := newTokenManager(func(_ context.Context, _ string) (model.OAuth2Token, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond) // hold the flight open so callers pile up
		return validToken("fresh"), nil
	}, nil)
	m.adopt(expiredToken("stale"))

	const n = 10
	results := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.accessToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent expiry must collapse to one refresh")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh", results[i])
	}
}

func TestForceRefresh_ReturnsReplacementWithoutNetworkCall(t *testing.T) {
	var calls int32
	m := newTokenManager(func(_ context.Context, _ string) (model.OAuth2Token, error) {
		atomic.AddInt32(&calls, 1)
		return validToken("fresh"), nil
	}, nil)

	// Another caller already replaced the token this caller saw a 401 with.
	m.adopt(validToken("already-replaced"))

	got, err := m.forceRefresh(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "already-replaced", got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestForceRefresh_StaleTokenTriggersRefresh(t *testing.T) {
	m := newTokenManager(func(_ context.Context, _ string) (model.OAuth2Token, error) {
		return validToken("fresh"), nil
	}, nil)
	m.adopt(validToken("stale"))

	got, err := m.forceRefresh(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestRefreshFailure_KeepsTokenInPlace(t *testing.T) {
	m := newTokenManager(func(_ context.Context, _ string) (model.OAuth2Token, error) {
		return model.OAuth2Token{}, errors.New("connection refused")
	}, nil)
	m.adopt(expiredToken("stale"))

	_, err := m.accessToken(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)

	// A transient refresh failure must not log the session out.
	require.NotNil(t, m.current())
	assert.Equal(t, "stale", m.current().AccessToken)
}

func TestSet_PersistsBundle(t *testing.T) {
	store := &fakeTokenStore{}
	m := newTokenManager(nil, store)

	m.set(context.Background(), validToken("abc"))

	require.NotNil(t, store.saved)
	assert.Equal(t, "abc", store.saved.AccessToken)
}

func TestSet_PersistFailureKeepsLiveSession(t *testing.T) {
	store := &fakeTokenStore{err: errors.New("disk full")}
	m := newTokenManager(nil, store)

	m.set(context.Background(), validToken("abc"))

	require.NotNil(t, m.current())
	assert.Equal(t, "abc", m.current().AccessToken)
}

func TestSet_MissingEncryptionKeyIsTolerated(t *testing.T) {
	store := &fakeTokenStore{err: driven.ErrEncryptionKeyNotSet}
	m := newTokenManager(nil, store)

	m.set(context.Background(), validToken("abc"))

	require.NotNil(t, m.current())
}

func TestClear_DropsTokenAndBundle(t *testing.T) {
	store := &fakeTokenStore{}
	m := newTokenManager(nil, store)
	m.set(context.Background(), validToken("abc"))

	require.NoError(t, m.clear(context.Background()))

	assert.Nil(t, m.current())
	assert.Nil(t, store.saved)
	assert.Equal(t, 1, store.clears)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	m := newTokenManager(nil, nil)
	m.adopt(validToken("abc"))

	c := m.current()
	c.AccessToken = "mutated"

	assert.Equal(t, "abc", m.current().AccessToken)
}
