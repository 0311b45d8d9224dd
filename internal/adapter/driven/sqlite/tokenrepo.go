package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port. The OAuth2
// token bundle is serialized to JSON and encrypted with AES-256-GCM before
// write, decrypted after read, so bearer and refresh tokens never touch disk
// in plaintext.
type TokenRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables persistence.
}

// NewTokenRepo creates a TokenRepo. key must be 32 bytes for AES-256-GCM, or
// nil to disable token persistence (operations then return
// driven.ErrEncryptionKeyNotSet and the session lives in memory only).
func NewTokenRepo(db *DB, key []byte) *TokenRepo {
	return &TokenRepo{db: db, key: key}
}

// Save stores or replaces the single persisted token bundle.
func (r *TokenRepo) Save(ctx context.Context, token model.OAuth2Token) error {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token bundle: %w", err)
	}

	encrypted, err := r.encrypt(plaintext)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO auth_tokens (id, bundle, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, encrypted); err != nil {
		return fmt.Errorf("save token bundle: %w", err)
	}
	return nil
}

// Load retrieves the persisted token bundle. Returns (nil, nil) when no
// bundle has been saved.
func (r *TokenRepo) Load(ctx context.Context) (*model.OAuth2Token, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT bundle FROM auth_tokens WHERE id = 1`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token bundle: %w", err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt token bundle: %w", err)
	}

	var token model.OAuth2Token
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token bundle: %w", err)
	}
	return &token, nil
}

// Clear removes the persisted bundle. Clearing an empty store is a no-op.
func (r *TokenRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM auth_tokens`
	if _, err := r.db.Writer.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear token bundle: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *TokenRepo) encrypt(plaintext []byte) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *TokenRepo) decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}

	return plaintext, nil
}
