// Package auth resolves a caller's Authorization header to a team and user.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taishikato/supavec-api/internal/apperr"
	"github.com/taishikato/supavec-api/pkg/models"
)

// Caller-facing failure messages.
const (
	MsgHeaderRequired = "Authorization header is required"
	MsgInvalidFormat  = "Invalid authorization header format"
	MsgInvalidKey     = "Invalid API key"
	MsgNoTeam         = "API key has no team association"
)

// ErrKeyNotFound is returned by a KeyStore when no record matches.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore looks up API key records.
type KeyStore interface {
	Lookup(ctx context.Context, key string) (*models.APIKey, error)
}

// Authenticator validates tokens against a KeyStore.
type Authenticator struct {
	keys KeyStore
}

// New creates an Authenticator backed by keys.
func New(keys KeyStore) *Authenticator {
	return &Authenticator{keys: keys}
}

// Authenticate resolves the raw Authorization header value.
// All failures are apperr authentication errors.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (models.Identity, error) {
	if header == "" {
		return models.Identity{}, apperr.Authentication(MsgHeaderRequired)
	}

	token, err := uuid.Parse(header)
	if err != nil {
		return models.Identity{}, apperr.Authentication(MsgInvalidFormat)
	}

	rec, err := a.keys.Lookup(ctx, token.String())
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			slog.Error("api key lookup failed", "error", err)
		}
		return models.Identity{}, apperr.Authentication(MsgInvalidKey)
	}

	if rec.TeamID == "" {
		return models.Identity{}, apperr.Authentication(MsgNoTeam)
	}

	return models.Identity{TeamID: rec.TeamID, UserID: rec.UserID}, nil
}
