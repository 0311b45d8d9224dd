// Package driven defines the driven (outbound) port interfaces implemented
// by adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

// Sentinel login outcomes shared across the vendor adapter and the HTTP
// surface. Adapters wrap these; callers match with errors.Is.
var (
	// ErrInvalidCredentials means the vendor rejected the submitted
	// email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked means the vendor has locked the account; retrying
	// would extend the lockout.
	ErrAccountLocked = errors.New("account locked")
	// ErrMFARequired means the account has multi-factor authentication
	// enabled, which this client does not support.
	ErrMFARequired = errors.New("multi-factor authentication required")
)

// VendorClient defines the driven port for the wellness platform's
// unofficial API. Fetch methods return (nil, nil) when the vendor has no
// data for the requested date; an error is returned only for genuine
// transport or protocol failures.
type VendorClient interface {
	// Login performs the full SSO + token-exchange handshake and leaves the
	// client holding a valid OAuth2 session.
	Login(ctx context.Context, email, password string) error
	// Restore loads a previously persisted token bundle, if any, so the
	// client can resume an earlier session without re-authenticating.
	Restore(ctx context.Context) error
	// Authenticated reports whether the client holds a usable session
	// (a current token, or one that can be refreshed).
	Authenticated() bool
	// Logout discards the in-memory session and any persisted token bundle.
	Logout(ctx context.Context) error

	FetchWellness(ctx context.Context, date string) (*model.WellnessSummary, error)
	FetchSleep(ctx context.Context, date string) (*model.SleepSummary, error)
	FetchHRV(ctx context.Context, date string) (*model.HRVSummary, error)
	FetchStress(ctx context.Context, date string) (*model.StressSummary, error)
	FetchActivity(ctx context.Context, date string) (*model.ActivitySummary, error)
}
