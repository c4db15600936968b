package apiclient

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/token"
	"golang.org/x/oauth2"
)

// ErrNoAccessToken is returned by StoreTokenSource when nothing is stored.
var ErrNoAccessToken = errors.New("no access token stored")

// StoreTokenSource reads the current access token from a credential store
// on every request, so a refresh written to the store is picked up by the
// next call without rebuilding the client.
type StoreTokenSource struct {
	Store credentials.Store
}

var _ oauth2.TokenSource = StoreTokenSource{}

func (s StoreTokenSource) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource has no context parameter
	raw, err := s.Store.GetAccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrNoAccessToken
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      token.Expiry(raw),
	}, nil
}
