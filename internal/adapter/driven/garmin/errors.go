package garmin

import (
	"errors"

	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// Sentinel errors surfaced by the login handshake and token lifecycle.
// Callers match them with errors.Is; all wrapping adds request context only.
// Credential outcomes are the port-level sentinels so the HTTP surface can
// map them without importing this package.
var (
	// ErrInvalidCredentials means the SSO form submission was rejected.
	ErrInvalidCredentials = driven.ErrInvalidCredentials
	// ErrAccountLocked means the vendor has locked the account; retrying
	// would extend the lockout.
	ErrAccountLocked = driven.ErrAccountLocked
	// ErrMFARequired means the account has multi-factor authentication
	// enabled, which this client does not support.
	ErrMFARequired = driven.ErrMFARequired
	// ErrCSRFNotFound means the sign-in page did not contain the expected
	// CSRF token marker, usually a vendor page-layout change.
	ErrCSRFNotFound = errors.New("csrf token not found in sign-in page")
	// ErrTicketNotFound means login appeared to succeed but no redirect
	// ticket could be extracted from the response.
	ErrTicketNotFound = errors.New("service ticket not found in login response")
	// ErrExchangeFailed means a token-exchange step returned an unusable
	// response; distinct from bad credentials, it signals a protocol or
	// version mismatch.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrNotAuthenticated means no session is held; the caller must log in.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrRefreshFailed means the OAuth2 refresh left no usable token.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrDisplayNameUnavailable means every display-name resolution
	// strategy came up empty.
	ErrDisplayNameUnavailable = errors.New("display name unavailable")
)
