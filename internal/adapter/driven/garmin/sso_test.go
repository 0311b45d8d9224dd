package garmin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSRF = "csrf-token-123"

// ssoServerConfig controls the scripted SSO responses.
type ssoServerConfig struct {
	// loginTitle is the <title> of the credential POST response.
	loginTitle string
	// ticket, when non-empty, is embedded in the success response body.
	ticket string
	// omitCSRF leaves the CSRF marker out of the sign-in page.
	omitCSRF bool
}

// newSSOServer fakes the vendor's SSO host: embed page, sign-in page with a
// CSRF marker, and the credential POST. It records what the flow submitted.
func newSSOServer(t *testing.T, cfg ssoServerConfig) (*httptest.Server, *capturedLogin) {
	t.Helper()
	captured := &capturedLogin{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /embed", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SESSIONID", Value: "sess-1"})
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("GET /signin", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "cas-1"})
		if cfg.omitCSRF {
			fmt.Fprint(w, "<html><form></form></html>")
			return
		}
		fmt.Fprintf(w, `<html><form><input type="hidden" name="_csrf" value=%q></form></html>`, testCSRF)
	})
	mux.HandleFunc("POST /signin", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured.username = r.PostFormValue("username")
		captured.password = r.PostFormValue("password")
		captured.csrf = r.PostFormValue("_csrf")
		captured.cookies = r.Header.Get("Cookie")

		body := fmt.Sprintf("<html><head><title>%s</title></head><body>", cfg.loginTitle)
		if cfg.ticket != "" {
			body += fmt.Sprintf(`var response_url = "https://sso.example.com/sso/embed?ticket=%s";`, cfg.ticket)
		}
		body += "</body></html>"
		fmt.Fprint(w, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, captured
}

type capturedLogin struct {
	username string
	password string
	csrf     string
	cookies  string
}

func newTestSSOFlow(srv *httptest.Server) *ssoFlow {
	return &ssoFlow{
		http:       srv.Client(),
		ssoBase:    srv.URL,
		serviceURL: "https://connect.example.com/modern",
		userAgent:  defaultUserAgent,
	}
}

func TestObtainTicket_Success(t *testing.T) {
	srv, captured := newSSOServer(t, ssoServerConfig{loginTitle: "Success", ticket: "ST-abc123-cas"})
	flow := newTestSSOFlow(srv)

	ticket, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")

	require.NoError(t, err)
	assert.Equal(t, "ST-abc123-cas", ticket)
	assert.Equal(t, "user@example.com", captured.username)
	assert.Equal(t, "hunter2", captured.password)
	assert.Equal(t, testCSRF, captured.csrf, "credential POST must echo the page CSRF token")
	assert.Contains(t, captured.cookies, "SESSIONID=sess-1", "embed cookies must reach the credential POST")
	assert.Contains(t, captured.cookies, "CASTGC=cas-1", "sign-in page cookies must reach the credential POST")
}

func TestObtainTicket_InvalidCredentials(t *testing.T) {
	srv, _ := newSSOServer(t, ssoServerConfig{loginTitle: "GARMIN Authentication Application"})
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestObtainTicket_MFARequired(t *testing.T) {
	srv, _ := newSSOServer(t, ssoServerConfig{loginTitle: "MFA Verification"})
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrMFARequired)
}

func TestObtainTicket_AccountLocked(t *testing.T) {
	srv, _ := newSSOServer(t, ssoServerConfig{loginTitle: "Account Locked"})
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestObtainTicket_CSRFMissing(t *testing.T) {
	srv, _ := newSSOServer(t, ssoServerConfig{omitCSRF: true})
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrCSRFNotFound)
}

func TestObtainTicket_TicketMissing(t *testing.T) {
	// Title says success but no ticket appears in the body.
	srv, _ := newSSOServer(t, ssoServerConfig{loginTitle: "Success"})
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestObtainTicket_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	flow := newTestSSOFlow(srv)

	_, err := flow.obtainTicket(context.Background(), "user@example.com", "hunter2")
	assert.Error(t, err)
}
