package apiclient

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-jobportal-client/users"
)

func (c *Client) Login(ctx context.Context, email, password string) (*AuthPayload, error) {
	var out AuthPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/login", false, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthPayload, error) {
	var out AuthPayload
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/register", false, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the refresh token server side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.sendJSON(ctx, http.MethodPost, "/auth/logout", true, body, nil)
}

// Me returns the current user as a patch so callers can merge it without
// losing fields the server omitted.
func (c *Client) Me(ctx context.Context) (users.Patch, error) {
	var out users.Patch
	err := c.getJSON(ctx, "/auth/me", &out)
	return out, err
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/refresh-token", false, body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Message: "refresh returned no access token"}
	}
	return &out, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.sendJSON(ctx, http.MethodPost, "/auth/forgot-password", false, map[string]string{"email": email}, nil)
}

// VerifyOTP exchanges an emailed one time code for a password reset token.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	var out struct {
		ResetToken string `json:"resetToken"`
	}
	body := map[string]string{"email": email, "otp": otp}
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/verify-otp", false, body, &out); err != nil {
		return "", err
	}
	return out.ResetToken, nil
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "/auth/reset-password", false, req, nil)
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}
	return c.sendJSON(ctx, http.MethodPut, "/auth/change-password", true, body, nil)
}

func (c *Client) RegisterPushToken(ctx context.Context, pushToken string, platform Platform) error {
	body := map[string]string{"pushToken": pushToken, "platform": string(platform)}
	return c.sendJSON(ctx, http.MethodPost, "/users/push-token", true, body, nil)
}

func (c *Client) UnregisterPushToken(ctx context.Context, pushToken string) error {
	body := map[string]string{"pushToken": pushToken}
	return c.sendJSON(ctx, http.MethodDelete, "/users/push-token", true, body, nil)
}

func (c *Client) RealtimeConfig(ctx context.Context) (*RealtimeConfig, error) {
	var out RealtimeConfig
	if err := c.getJSON(ctx, "/realtime/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
