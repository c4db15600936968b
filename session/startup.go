package session

import (
	"context"

	"github.com/jrsteele09/go-jobportal-client/credentials"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/token"
	"github.com/pkg/errors"
)

// Init resumes a stored session. The stored user is shown optimistically
// while the access token is verified; if verification fails a single
// refresh exchange is attempted and, failing that, the session is logged
// out. Only the first call does anything.
func (c *Controller) Init(ctx context.Context) {
	c.initOnce.Do(func() {
		c.init(ctx)
	})
}

func (c *Controller) init(ctx context.Context) {
	defer c.setLoading(false)

	stored, err := credentials.Load(ctx, c.store)
	if err != nil {
		c.logger.Error().Err(err).Msg("could not read stored credentials")
		c.settleUnauthenticated()
		return
	}
	if !stored.HasCredentials() {
		c.settleUnauthenticated()
		return
	}

	c.authenticate(stored.User)

	verifyErr := c.verify(ctx, stored.AccessToken)
	if verifyErr == nil {
		c.logger.Debug().Msg("stored session verified")
		return
	}
	c.logger.Info().Err(verifyErr).Msg("stored access token rejected, refreshing")

	if err := c.refresh(ctx, stored.RefreshToken); err != nil {
		c.logger.Warn().Err(err).Msg("token refresh failed, logging out")
		c.forceLogout(ctx)
		return
	}
}

// settleUnauthenticated records that there is no session without touching
// the store or navigating.
func (c *Controller) settleUnauthenticated() {
	c.mu.Lock()
	c.user = nil
	c.state = StateUnauthenticated
	c.mu.Unlock()
	c.changes.Publish(Event{Kind: EventUnauthenticated})
}

// verify checks the access token against the server. A JWT whose exp is
// already past is rejected without a round trip.
func (c *Controller) verify(ctx context.Context, accessToken string) error {
	if in, err := token.Inspect(accessToken); err == nil && in.ExpiredAt(c.nowTime()) {
		return interrors.ErrTokenExpired
	}
	patch, err := c.api.Me(ctx)
	if err != nil {
		return errors.Wrap(err, "[Controller.verify] Me")
	}
	if _, err := c.mergeUser(ctx, patch); err != nil {
		return errors.Wrap(err, "[Controller.verify] mergeUser")
	}
	return nil
}

// refresh performs the one refresh-token exchange allowed per startup.
func (c *Controller) refresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		c.metrics.TokenRefresh(outcomeFailure)
		return interrors.ErrInvalidRefreshToken
	}
	pair, err := c.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		c.metrics.TokenRefresh(outcomeFailure)
		return errors.Wrap(err, "[Controller.refresh] RefreshToken")
	}
	err = credentials.Save(ctx, c.store, credentials.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		c.metrics.TokenRefresh(outcomeFailure)
		return errors.Wrap(err, "[Controller.refresh] credentials.Save")
	}
	c.metrics.TokenRefresh(outcomeSuccess)

	// the profile may have changed while the token was stale
	if err := c.RefreshUser(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("profile reload after refresh failed")
	}
	return nil
}

// forceLogout ends a session whose tokens can no longer be used. The
// server is not contacted since it would reject the request anyway.
func (c *Controller) forceLogout(ctx context.Context) {
	c.metrics.ForcedLogout()
	c.clear(ctx)
}
