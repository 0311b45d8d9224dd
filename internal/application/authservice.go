// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// AuthService manages the vendor session lifecycle on behalf of the HTTP
// surface.
type AuthService struct {
	client driven.VendorClient
}

// NewAuthService creates a new AuthService.
func NewAuthService(client driven.VendorClient) *AuthService {
	return &AuthService{client: client}
}

// Login performs the full vendor sign-in handshake with the given credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	if err := s.client.Login(ctx, email, password); err != nil {
		slog.Error("vendor login failed", "error", err)
		return err
	}
	slog.Info("vendor login succeeded")
	return nil
}

// Authenticated reports whether a usable vendor session is held.
func (s *AuthService) Authenticated() bool {
	return s.client.Authenticated()
}

// Logout discards the in-memory session and any persisted token bundle.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		slog.Error("vendor logout failed", "error", err)
		return err
	}
	slog.Info("vendor session cleared")
	return nil
}
