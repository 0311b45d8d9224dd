package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

// exchanger trades the SSO ticket for an OAuth1 token pair and the OAuth1
// pair for an OAuth2 bearer/refresh bundle. Both steps are all-or-nothing:
// no partially written token state is ever returned.
type exchanger struct {
	http      *http.Client
	signer    *Signer
	apiBase   string // e.g. https://connectapi.garmin.com
	ssoBase   string // login-url parameter of the preauthorized call
	userAgent string
	now       func() time.Time
}

// ticketToOAuth1 performs the signed preauthorized GET that consumes the
// one-time ticket. The response body is URL-encoded.
func (e *exchanger) ticketToOAuth1(ctx context.Context, ticket string) (model.OAuth1Token, error) {
	query := url.Values{
		"ticket":             {ticket},
		"login-url":          {e.ssoBase + "/embed"},
		"accepts-mfa-tokens": {"true"},
	}
	rawURL := e.apiBase + "/oauth-service/oauth/preauthorized?" + query.Encode()

	auth, err := e.signer.AuthorizationHeader(http.MethodGet, rawURL, nil, "", "")
	if err != nil {
		return model.OAuth1Token{}, fmt.Errorf("%w: sign preauthorized request: %v", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.OAuth1Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", e.userAgent)

	body, status, err := e.do(req)
	if err != nil {
		return model.OAuth1Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if status != http.StatusOK {
		return model.OAuth1Token{}, fmt.Errorf("%w: preauthorized responded HTTP %d", ErrExchangeFailed, status)
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return model.OAuth1Token{}, fmt.Errorf("%w: parse preauthorized body: %v", ErrExchangeFailed, err)
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return model.OAuth1Token{}, fmt.Errorf("%w: preauthorized body missing oauth token pair", ErrExchangeFailed)
	}

	return model.OAuth1Token{Token: token, Secret: secret}, nil
}

// oauth1ToOAuth2 performs the signed empty-body POST that upgrades the
// OAuth1 pair to an OAuth2 bearer/refresh bundle. ExpiresAt is computed
// once here, from expires_in at receipt.
func (e *exchanger) oauth1ToOAuth2(ctx context.Context, t model.OAuth1Token) (model.OAuth2Token, error) {
	rawURL := e.apiBase + "/oauth-service/oauth/exchange/user/2.0"

	auth, err := e.signer.AuthorizationHeader(http.MethodPost, rawURL, nil, t.Token, t.Secret)
	if err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: sign exchange request: %v", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := e.do(req)
	if err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if status != http.StatusOK {
		return model.OAuth2Token{}, fmt.Errorf("%w: exchange responded HTTP %d", ErrExchangeFailed, status)
	}

	return e.parseOAuth2(body)
}

// refreshOAuth2 trades a refresh token for a fresh bearer/refresh bundle.
func (e *exchanger) refreshOAuth2(ctx context.Context, refreshToken string) (model.OAuth2Token, error) {
	rawURL := e.apiBase + "/oauth-service/oauth/refresh/user/2.0"
	form := url.Values{"refresh_token": {refreshToken}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := e.do(req)
	if err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if status != http.StatusOK {
		return model.OAuth2Token{}, fmt.Errorf("%w: refresh responded HTTP %d", ErrExchangeFailed, status)
	}

	return e.parseOAuth2(body)
}

// parseOAuth2 decodes the JSON token response shared by exchange and refresh.
func (e *exchanger) parseOAuth2(body string) (model.OAuth2Token, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return model.OAuth2Token{}, fmt.Errorf("%w: decode token response: %v", ErrExchangeFailed, err)
	}
	if payload.AccessToken == "" {
		return model.OAuth2Token{}, fmt.Errorf("%w: token response missing access_token", ErrExchangeFailed)
	}

	return model.OAuth2Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    e.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func (e *exchanger) do(req *http.Request) (string, int, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	return string(data), resp.StatusCode, nil
}
