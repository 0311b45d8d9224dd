// Package garmin implements the VendorClient port against Garmin Connect's
// unofficial mobile API: browser-style SSO login, OAuth1 HMAC-SHA1 ticket
// exchange, OAuth2 bearer sessions, and the per-date wellness endpoints.
package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VendorClient = (*Client)(nil)

const (
	defaultSSOBase     = "https://sso.garmin.com/sso"
	defaultServiceURL  = "https://connect.garmin.com/modern"
	defaultAPIBase     = "https://connectapi.garmin.com"
	defaultUserAgent   = "com.garmin.android.apps.connectmobile"
	defaultBaseDelay   = time.Second
	defaultMaxRetries  = 3
	sleepBufferMinutes = "60"

	// Consumer pair the mobile app presents to the OAuth1 endpoints.
	mobileConsumerKey    = "fc3e99d2-118c-44b8-8ae3-03370dde24c0"
	mobileConsumerSecret = "E08WAR897WEy2knn7aFBrvegVAf0AFdWBBF"
)

// Client implements the driven.VendorClient port. All reads go through a
// token manager that refreshes proactively inside an expiry buffer and
// reactively on 401, with at most one refresh in flight system-wide.
type Client struct {
	http       *http.Client
	apiBase    string
	userAgent  string
	signer     *Signer
	sso        *ssoFlow
	exch       *exchanger
	tokens     *tokenManager
	profile    *profileResolver
	baseDelay  time.Duration
	maxRetries uint64
}

// NewClient creates a Client against the production endpoints with the
// following transport stack:
//  1. httpcache (conditional request caching for the read endpoints)
//  2. net/http with a 30-second safety-net timeout
//
// Redirects are never followed: the SSO flow reads each hop's body as-is.
// store may be nil, in which case the session lives in memory only.
func NewClient(store driven.TokenStore) *Client {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   30 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return NewClientWithBaseURLs(httpClient, defaultSSOBase, defaultServiceURL, defaultAPIBase, store)
}

// NewClientWithBaseURLs creates a Client with a custom http.Client and base
// URLs. This constructor is intended for testing, allowing injection of
// httptest servers for the SSO host and the API host.
func NewClientWithBaseURLs(httpClient *http.Client, ssoBase, serviceURL, apiBase string, store driven.TokenStore) *Client {
	signer := NewSigner(mobileConsumerKey, mobileConsumerSecret)

	c := &Client{
		http:      httpClient,
		apiBase:   apiBase,
		userAgent: defaultUserAgent,
		signer:    signer,
		sso: &ssoFlow{
			http:       httpClient,
			ssoBase:    ssoBase,
			serviceURL: serviceURL,
			userAgent:  defaultUserAgent,
		},
		exch: &exchanger{
			http:      httpClient,
			signer:    signer,
			apiBase:   apiBase,
			ssoBase:   ssoBase,
			userAgent: defaultUserAgent,
			now:       time.Now,
		},
		baseDelay:  defaultBaseDelay,
		maxRetries: defaultMaxRetries,
	}
	c.tokens = newTokenManager(c.exch.refreshOAuth2, store)
	c.profile = &profileResolver{strategies: c.nameStrategies()}

	return c
}

// Login runs the SSO handshake and both token exchanges. On success the
// client holds (and persists) a valid OAuth2 session; on any failure no
// token state changes.
func (c *Client) Login(ctx context.Context, email, password string) error {
	ticket, err := c.sso.obtainTicket(ctx, email, password)
	if err != nil {
		return err
	}

	oauth1, err := c.exch.ticketToOAuth1(ctx, ticket)
	if err != nil {
		return err
	}

	oauth2, err := c.exch.oauth1ToOAuth2(ctx, oauth1)
	if err != nil {
		return err
	}

	c.tokens.set(ctx, oauth2)
	c.profile.reset()

	slog.Info("vendor login complete", "token_expires_at", oauth2.ExpiresAt)
	return nil
}

// Restore loads a persisted token bundle if one exists. A missing bundle or
// disabled token store is not an error; the client simply stays logged out.
func (c *Client) Restore(ctx context.Context) error {
	if c.tokens.store == nil {
		return nil
	}

	t, err := c.tokens.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token bundle: %w", err)
	}
	if t == nil {
		return nil
	}

	c.tokens.adopt(*t)
	slog.Info("vendor session restored", "token_expires_at", t.ExpiresAt)
	return nil
}

// Authenticated reports whether a session is held. The token may be inside
// its expiry buffer; the next read will refresh it.
func (c *Client) Authenticated() bool {
	return c.tokens.current() != nil
}

// Logout discards the in-memory session and the persisted bundle.
func (c *Client) Logout(ctx context.Context) error {
	c.profile.reset()
	return c.tokens.clear(ctx)
}

// FetchWellness returns resting/min/max heart rate and body battery range
// for one day, or (nil, nil) when the vendor has no data.
func (c *Client) FetchWellness(ctx context.Context, date string) (*model.WellnessSummary, error) {
	name, err := c.profile.displayName(ctx)
	if err != nil {
		return nil, err
	}

	var hr struct {
		RestingHeartRate int `json:"restingHeartRate"`
		MinHeartRate     int `json:"minHeartRate"`
		MaxHeartRate     int `json:"maxHeartRate"`
	}
	hrFound, err := c.getJSON(ctx, "/wellness-service/wellness/dailyHeartRate/"+url.PathEscape(name),
		url.Values{"date": {date}}, &hr)
	if err != nil {
		return nil, err
	}

	var battery []struct {
		Date    string `json:"date"`
		Highest int    `json:"highestBodyBattery"`
		Lowest  int    `json:"lowestBodyBattery"`
	}
	bbFound, err := c.getJSON(ctx, "/wellness-service/wellness/bodyBattery/reports/daily",
		url.Values{"startDate": {date}, "endDate": {date}}, &battery)
	if err != nil {
		return nil, err
	}

	if !hrFound && (!bbFound || len(battery) == 0) {
		return nil, nil
	}

	summary := &model.WellnessSummary{
		RestingHeartRate: hr.RestingHeartRate,
		MinHeartRate:     hr.MinHeartRate,
		MaxHeartRate:     hr.MaxHeartRate,
	}
	if bbFound && len(battery) > 0 {
		summary.BodyBatteryHighest = battery[0].Highest
		summary.BodyBatteryLowest = battery[0].Lowest
	}
	return summary, nil
}

// FetchSleep returns sleep stage durations and the sleep score for one
// night, or (nil, nil) when no sleep was recorded.
func (c *Client) FetchSleep(ctx context.Context, date string) (*model.SleepSummary, error) {
	name, err := c.profile.displayName(ctx)
	if err != nil {
		return nil, err
	}

	var payload struct {
		DailySleepDTO *struct {
			SleepTimeSeconds  int `json:"sleepTimeSeconds"`
			DeepSleepSeconds  int `json:"deepSleepSeconds"`
			LightSleepSeconds int `json:"lightSleepSeconds"`
			RemSleepSeconds   int `json:"remSleepSeconds"`
			AwakeSleepSeconds int `json:"awakeSleepSeconds"`
			SleepScores       *struct {
				Overall *struct {
					Value int `json:"value"`
				} `json:"overall"`
			} `json:"sleepScores"`
		} `json:"dailySleepDTO"`
	}
	found, err := c.getJSON(ctx, "/wellness-service/wellness/dailySleepData/"+url.PathEscape(name),
		url.Values{"date": {date}, "nonSleepBufferMinutes": {sleepBufferMinutes}}, &payload)
	if err != nil {
		return nil, err
	}
	if !found || payload.DailySleepDTO == nil || payload.DailySleepDTO.SleepTimeSeconds == 0 {
		return nil, nil
	}

	dto := payload.DailySleepDTO
	summary := &model.SleepSummary{
		DurationMinutes: dto.SleepTimeSeconds / 60,
		DeepMinutes:     dto.DeepSleepSeconds / 60,
		LightMinutes:    dto.LightSleepSeconds / 60,
		RemMinutes:      dto.RemSleepSeconds / 60,
		AwakeMinutes:    dto.AwakeSleepSeconds / 60,
	}
	if dto.SleepScores != nil && dto.SleepScores.Overall != nil {
		summary.Score = dto.SleepScores.Overall.Value
	}
	return summary, nil
}

// FetchHRV returns overnight heart-rate variability for one date, or
// (nil, nil) when the device recorded none.
func (c *Client) FetchHRV(ctx context.Context, date string) (*model.HRVSummary, error) {
	var payload struct {
		HRVSummary *struct {
			LastNightAvg int    `json:"lastNightAvg"`
			WeeklyAvg    int    `json:"weeklyAvg"`
			Status       string `json:"status"`
		} `json:"hrvSummary"`
	}
	found, err := c.getJSON(ctx, "/hrv-service/hrv/"+url.PathEscape(date), nil, &payload)
	if err != nil {
		return nil, err
	}
	if !found || payload.HRVSummary == nil {
		return nil, nil
	}

	return &model.HRVSummary{
		LastNightAvg: payload.HRVSummary.LastNightAvg,
		WeeklyAvg:    payload.HRVSummary.WeeklyAvg,
		Status:       payload.HRVSummary.Status,
	}, nil
}

// FetchStress returns all-day stress levels for one date. The vendor
// reports -1 for days without stress tracking; that maps to (nil, nil).
func (c *Client) FetchStress(ctx context.Context, date string) (*model.StressSummary, error) {
	var payload struct {
		AvgStressLevel     int `json:"avgStressLevel"`
		MaxStressLevel     int `json:"maxStressLevel"`
		RestStressDuration int `json:"restStressDuration"`
	}
	found, err := c.getJSON(ctx, "/wellness-service/wellness/dailyStress/"+url.PathEscape(date), nil, &payload)
	if err != nil {
		return nil, err
	}
	if !found || payload.AvgStressLevel < 0 {
		return nil, nil
	}

	return &model.StressSummary{
		AvgLevel:    payload.AvgStressLevel,
		MaxLevel:    payload.MaxStressLevel,
		RestMinutes: payload.RestStressDuration / 60,
	}, nil
}

// FetchActivity returns step and calorie totals from the daily summary
// endpoint, or (nil, nil) when the vendor has no data for the date.
func (c *Client) FetchActivity(ctx context.Context, date string) (*model.ActivitySummary, error) {
	name, err := c.profile.displayName(ctx)
	if err != nil {
		return nil, err
	}

	var payload struct {
		TotalSteps               int     `json:"totalSteps"`
		TotalDistanceMeters      float64 `json:"totalDistanceMeters"`
		ActiveKilocalories       int     `json:"activeKilocalories"`
		TotalKilocalories        int     `json:"totalKilocalories"`
		FloorsAscended           int     `json:"floorsAscended"`
		HighlyActiveSeconds      int     `json:"highlyActiveSeconds"`
		ModerateIntensityMinutes int     `json:"moderateIntensityMinutes"`
	}
	found, err := c.getJSON(ctx, "/usersummary-service/usersummary/daily/"+url.PathEscape(name),
		url.Values{"calendarDate": {date}}, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &model.ActivitySummary{
		Steps:           payload.TotalSteps,
		DistanceMeters:  payload.TotalDistanceMeters,
		ActiveCalories:  payload.ActiveKilocalories,
		TotalCalories:   payload.TotalKilocalories,
		FloorsClimbed:   payload.FloorsAscended,
		ActiveMinutes:   payload.HighlyActiveSeconds / 60,
		ModerateMinutes: payload.ModerateIntensityMinutes,
	}, nil
}

// getJSON issues an authenticated GET and decodes the JSON response into
// out. It returns (false, nil) when the vendor has no data for the request
// (204 or 404), which is not an error.
//
// A 401 is treated as an out-of-band expiry signal even though the token
// manager believed the token valid: exactly one forced refresh runs through
// the shared singleflight and the call is retried once with the new token.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	token, err := c.tokens.accessToken(ctx)
	if err != nil {
		return false, err
	}

	resp, err := c.doAuthed(ctx, path, query, token)
	if err != nil {
		return false, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		slog.Debug("vendor rejected token before advertised expiry, forcing refresh", "path", path)

		fresh, err := c.tokens.forceRefresh(ctx, token)
		if err != nil {
			return false, err
		}
		resp, err = c.doAuthed(ctx, path, query, fresh)
		if err != nil {
			return false, err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("vendor api call", "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// Data/service errors, not transience; never retried.
		return false, fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", path, err)
	}
	return true, nil
}

// doAuthed performs one authenticated request, retrying network-level
// failures (no response at all) up to maxRetries with linearly increasing
// backoff. HTTP responses of any status are returned to the caller.
func (c *Client) doAuthed(ctx context.Context, path string, query url.Values, token string) (*http.Response, error) {
	rawURL := c.apiBase + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", "en-US")
		req.Header.Set("X-Units", "metric")

		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newLinearBackOff(c.baseDelay), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

// linearBackOff implements backoff.BackOff with delays of
// attempt * base, matching the vendor client's retry policy.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func newLinearBackOff(base time.Duration) *linearBackOff {
	return &linearBackOff{base: base}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
