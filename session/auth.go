package session

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/credentials"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/internal/utils"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeRejected = "invalid"
)

// RegisterPayload is the sign up form. Role must be CANDIDATE or EMPLOYER;
// an empty role registers a candidate.
type RegisterPayload struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      users.RoleType
	Phone     string
}

func validateEmail(email string) error {
	if email == "" {
		return interrors.Invalid(interrors.ErrEmailRequired)
	}
	if !utils.IsEmailLike(email) {
		return interrors.Invalid(interrors.ErrInvalidEmail)
	}
	return nil
}

func validateLogin(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return interrors.Invalid(interrors.ErrPasswordMissing)
	}
	return nil
}

func (p *RegisterPayload) validate() error {
	if err := validateLogin(p.Email, p.Password); err != nil {
		return err
	}
	if err := users.ValidatePasswordStrength(p.Password); err != nil {
		return interrors.Validation(err.Error())
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return interrors.Validation("first and last name are required")
	}
	if p.Role == "" {
		p.Role = users.RoleCandidate
	}
	if !p.Role.SelfRegistrable() {
		return interrors.Invalid(interrors.ErrInvalidRole)
	}
	return nil
}

// Login signs in with email and password. Input is checked locally before
// any request is made.
func (c *Controller) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if err := validateLogin(email, password); err != nil {
		c.metrics.AuthAttempt("login", outcomeRejected)
		return failed(err)
	}

	payload, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.logger.Warn().Err(err).Msg("login failed")
		c.metrics.AuthAttempt("login", outcomeFailure)
		return failed(err)
	}
	if err := c.establish(ctx, payload); err != nil {
		c.logger.Error().Err(err).Msg("login could not be persisted")
		c.metrics.AuthAttempt("login", outcomeFailure)
		return failed(err)
	}
	c.metrics.AuthAttempt("login", outcomeSuccess)
	return succeeded()
}

// Register creates an account and signs it in.
func (c *Controller) Register(ctx context.Context, payload RegisterPayload) Result {
	payload.Email = strings.TrimSpace(payload.Email)
	if err := payload.validate(); err != nil {
		c.metrics.AuthAttempt("register", outcomeRejected)
		return failed(err)
	}

	auth, err := c.api.Register(ctx, apiclient.RegisterRequest{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: strings.TrimSpace(payload.FirstName),
		LastName:  strings.TrimSpace(payload.LastName),
		Role:      payload.Role,
		Phone:     strings.TrimSpace(payload.Phone),
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("registration failed")
		c.metrics.AuthAttempt("register", outcomeFailure)
		return failed(err)
	}
	if err := c.establish(ctx, auth); err != nil {
		c.logger.Error().Err(err).Msg("registration could not be persisted")
		c.metrics.AuthAttempt("register", outcomeFailure)
		return failed(err)
	}
	c.metrics.AuthAttempt("register", outcomeSuccess)
	return succeeded()
}

// establish persists a fresh login and marks the session authenticated.
func (c *Controller) establish(ctx context.Context, payload *apiclient.AuthPayload) error {
	if payload == nil || payload.AccessToken == "" || payload.User == nil {
		return errors.Wrap(interrors.ErrInvalidToken, "[Controller.establish] incomplete auth response")
	}
	user := payload.User.Clone()
	if !user.Role.Valid() {
		user.Role = users.RoleCandidate
	}

	// a previous session may have left a refresh token behind
	if err := c.store.ClearAll(ctx); err != nil {
		return errors.Wrap(err, "[Controller.establish] ClearAll")
	}
	err := credentials.Save(ctx, c.store, credentials.Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         user,
	})
	if err != nil {
		_ = c.store.ClearAll(ctx)
		return errors.Wrap(err, "[Controller.establish] credentials.Save")
	}

	// the device token must be registered again for the new account
	c.push.Reset()
	c.authenticate(user)
	c.setLoading(false)
	return nil
}

// Logout ends the session. Remote cleanup is best-effort; local state is
// always cleared and the UI is sent back to login.
func (c *Controller) Logout(ctx context.Context) {
	c.push.Cancel()

	if c.IsAuthenticated() {
		// the push token must go before the access token is revoked
		c.push.Unregister(ctx)

		refreshToken, err := c.store.GetRefreshToken(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("could not read refresh token for logout")
		}
		if err := c.api.Logout(ctx, refreshToken); err != nil {
			c.logger.Warn().Err(err).Msg("remote logout failed")
		}
	}
	c.clear(ctx)
	c.logger.Info().Msg("logged out")
}

// RefreshUser reloads the profile from the server and merges it into the
// current user. Fields the server omits keep their previous values. A
// rejected token ends the session and yields ErrSessionInvalidated.
func (c *Controller) RefreshUser(ctx context.Context) error {
	if !c.IsAuthenticated() {
		return interrors.ErrNotAuthenticated
	}
	patch, err := c.api.Me(ctx)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return errors.Wrap(interrors.ErrSessionInvalidated, "[Controller.RefreshUser] Me")
		}
		return errors.Wrap(err, "[Controller.RefreshUser] Me")
	}
	if _, err := c.mergeUser(ctx, patch); err != nil {
		return errors.Wrap(err, "[Controller.RefreshUser] mergeUser")
	}
	return nil
}

// UpdateProfile sends changed profile fields and merges the server's answer.
func (c *Controller) UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) Result {
	if !c.IsAuthenticated() {
		return failed(interrors.ErrNotAuthenticated)
	}
	if update.FirstName != nil && strings.TrimSpace(*update.FirstName) == "" {
		return failed(interrors.Validation("first name cannot be empty"))
	}
	if update.LastName != nil && strings.TrimSpace(*update.LastName) == "" {
		return failed(interrors.Validation("last name cannot be empty"))
	}

	patch, err := c.api.UpdateProfile(ctx, update)
	if err != nil {
		c.logger.Warn().Err(err).Msg("profile update failed")
		if apiclient.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return failed(errors.Wrap(interrors.ErrSessionInvalidated, err.Error()))
		}
		return failed(err)
	}
	if _, err := c.mergeUser(ctx, patch); err != nil {
		return failed(err)
	}
	return succeeded()
}

func (c *Controller) ForgotPassword(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return failed(err)
	}
	if err := c.api.ForgotPassword(ctx, email); err != nil {
		return failed(err)
	}
	return succeeded()
}

// VerifyOTP exchanges an emailed code for a reset token.
func (c *Controller) VerifyOTP(ctx context.Context, email, otp string) (string, Result) {
	email = strings.TrimSpace(email)
	otp = strings.TrimSpace(otp)
	if err := validateEmail(email); err != nil {
		return "", failed(err)
	}
	if otp == "" {
		return "", failed(interrors.Validation("please enter the code sent to your email"))
	}
	resetToken, err := c.api.VerifyOTP(ctx, email, otp)
	if err != nil {
		return "", failed(err)
	}
	return resetToken, succeeded()
}

func (c *Controller) ResetPassword(ctx context.Context, req apiclient.ResetPasswordRequest) Result {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateEmail(req.Email); err != nil {
		return failed(err)
	}
	if req.ResetToken == "" {
		return failed(interrors.Invalid(interrors.ErrInvalidToken))
	}
	if err := users.ValidatePasswordStrength(req.NewPassword); err != nil {
		return failed(interrors.Validation(err.Error()))
	}
	if err := c.api.ResetPassword(ctx, req); err != nil {
		return failed(err)
	}
	return succeeded()
}

func (c *Controller) ChangePassword(ctx context.Context, currentPassword, newPassword string) Result {
	if !c.IsAuthenticated() {
		return failed(interrors.ErrNotAuthenticated)
	}
	if currentPassword == "" {
		return failed(interrors.Invalid(interrors.ErrPasswordMissing))
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return failed(interrors.Validation(err.Error()))
	}
	if currentPassword == newPassword {
		return failed(interrors.Validation("new password must differ from the current one"))
	}
	if err := c.api.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		return failed(err)
	}
	return succeeded()
}
