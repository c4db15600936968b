package credentials

import (
	"context"

	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
)

// Store persists the session credentials between process runs. Getters
// return zero values, not errors, when nothing is stored.
type Store interface {
	GetAccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	GetRefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, token string) error
	GetUser(ctx context.Context) (*users.User, error)
	SetUser(ctx context.Context, user *users.User) error
	ClearAll(ctx context.Context) error
}

// Session is the full set of persisted credentials.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
}

// HasCredentials reports whether the session can be used to resume.
func (s *Session) HasCredentials() bool {
	return s != nil && s.AccessToken != "" && s.User != nil
}

// Load reads the whole session from store.
func Load(ctx context.Context, store Store) (*Session, error) {
	access, err := store.GetAccessToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[credentials.Load] GetAccessToken")
	}
	refresh, err := store.GetRefreshToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[credentials.Load] GetRefreshToken")
	}
	user, err := store.GetUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[credentials.Load] GetUser")
	}
	return &Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// Save writes every part of s. An empty refresh token leaves the stored
// one untouched, since not every backend rotates it.
func Save(ctx context.Context, store Store, s Session) error {
	if err := store.SetAccessToken(ctx, s.AccessToken); err != nil {
		return errors.Wrap(err, "[credentials.Save] SetAccessToken")
	}
	if s.RefreshToken != "" {
		if err := store.SetRefreshToken(ctx, s.RefreshToken); err != nil {
			return errors.Wrap(err, "[credentials.Save] SetRefreshToken")
		}
	}
	if s.User != nil {
		if err := store.SetUser(ctx, s.User); err != nil {
			return errors.Wrap(err, "[credentials.Save] SetUser")
		}
	}
	return nil
}
