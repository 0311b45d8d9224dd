package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by token store operations when no
// encryption key was configured; tokens are then held in memory only.
var ErrEncryptionKeyNotSet = errors.New("token encryption key not set")

// TokenStore defines the driven port for the persisted OAuth2 token bundle.
// Load returns (nil, nil) when no bundle has been saved.
type TokenStore interface {
	Save(ctx context.Context, token model.OAuth2Token) error
	Load(ctx context.Context) (*model.OAuth2Token, error)
	Clear(ctx context.Context) error
}
