package garmin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Fixed marker patterns for the vendor's sign-in HTML. These track the page
// layout of the embedded gauth widget, not a general HTML structure, so a
// DOM parser would buy nothing over anchored expressions.
var (
	csrfPattern   = regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`)
	titlePattern  = regexp.MustCompile(`<title>([^<]*)</title>`)
	ticketPattern = regexp.MustCompile(`embed\?ticket=([^"]+)"`)
)

// ssoFlow performs the cookie-carrying, multi-step HTML login against the
// vendor's SSO host and yields a one-time service ticket.
//
// The flow is a linear state machine: embed fetch -> sign-in page fetch
// (CSRF extraction) -> credential submission -> ticket extraction. It never
// retries internally; re-submitting failed credentials risks a vendor
// lockout, so retries belong to the API-read layer only.
type ssoFlow struct {
	http       *http.Client
	ssoBase    string // e.g. https://sso.garmin.com/sso
	serviceURL string // e.g. https://connect.garmin.com/modern
	userAgent  string
}

// obtainTicket runs the full login flow and returns the redirect ticket.
func (f *ssoFlow) obtainTicket(ctx context.Context, email, password string) (string, error) {
	sess := newSessionState()

	// Step 1: establish session cookies via the embed endpoint.
	embedQuery := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {f.ssoBase},
	}
	if _, err := f.get(ctx, sess, f.ssoBase+"/embed", embedQuery); err != nil {
		return "", fmt.Errorf("fetch sso embed: %w", err)
	}

	// Step 2: fetch the sign-in page and extract the CSRF token.
	signinURL := f.ssoBase + "/signin"
	signinQuery := url.Values{
		"id":                              {"gauth-widget"},
		"embedWidget":                     {"true"},
		"gauthHost":                       {f.ssoBase + "/embed"},
		"service":                         {f.serviceURL},
		"source":                          {f.serviceURL},
		"redirectAfterAccountLoginUrl":    {f.serviceURL},
		"redirectAfterAccountCreationUrl": {f.serviceURL},
	}
	page, err := f.get(ctx, sess, signinURL, signinQuery)
	if err != nil {
		return "", fmt.Errorf("fetch sign-in page: %w", err)
	}

	m := csrfPattern.FindStringSubmatch(page)
	if m == nil {
		return "", ErrCSRFNotFound
	}
	sess.csrf = m[1]

	// Step 3: submit credentials with the accumulated cookies.
	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"true"},
		"_csrf":    {sess.csrf},
	}
	body, err := f.post(ctx, sess, signinURL, signinQuery, form)
	if err != nil {
		return "", fmt.Errorf("submit credentials: %w", err)
	}

	// Step 4: the response title tells the outcome apart.
	title := ""
	if m := titlePattern.FindStringSubmatch(body); m != nil {
		title = m[1]
	}
	switch {
	case title == "Success":
		// continue to ticket extraction
	case strings.Contains(title, "MFA"):
		return "", ErrMFARequired
	case strings.Contains(strings.ToLower(title), "locked"):
		return "", ErrAccountLocked
	default:
		return "", ErrInvalidCredentials
	}

	// Step 5: extract the one-time redirect ticket.
	m = ticketPattern.FindStringSubmatch(body)
	if m == nil {
		return "", ErrTicketNotFound
	}

	return m[1], nil
}

// get issues a GET carrying the session cookies and absorbs any Set-Cookie
// from the response. Redirects are not followed; the flow reads each
// response as-is.
func (f *ssoFlow) get(ctx context.Context, sess *sessionState, rawURL string, query url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	return f.do(sess, req)
}

// post issues a form-encoded POST carrying the session cookies.
func (f *ssoFlow) post(ctx context.Context, sess *sessionState, rawURL string, query url.Values, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", rawURL)
	return f.do(sess, req)
}

func (f *ssoFlow) do(sess *sessionState, req *http.Request) (string, error) {
	req.Header.Set("User-Agent", f.userAgent)
	if cookie := sess.cookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	sess.absorb(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("sso responded HTTP %d", resp.StatusCode)
	}

	return string(data), nil
}
