package client

import (
	"context"
	"net/http"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// SessionData reads the authoritative session state. A logged-in response
// carries the access token; callers normally pass it to SetToken.
func (c *Client) SessionData(ctx context.Context) (types.SessionData, error) {
	var out types.SessionData
	err := c.do(ctx, call{
		endpoint: "session_data",
		method:   http.MethodGet,
		path:     "/api/internal/session-data",
		out:      &out,
	})
	return out, err
}

// Login authenticates with a user name and password. The session cookie is
// kept in the client's jar.
func (c *Client) Login(ctx context.Context, cred types.PasswordCredential) (types.SessionState, error) {
	var out types.SessionState
	err := c.do(ctx, call{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/api/internal/login",
		body:     cred,
		out:      &out,
	})
	return out, err
}

// Logout revokes the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{
		endpoint: "logout",
		method:   http.MethodPost,
		path:     "/api/internal/logout",
	})
}

// ResetPassword sets the first password of a user whose login reported
// NeedsChangePassword. It must be called on the same session as that login.
func (c *Client) ResetPassword(ctx context.Context, userName, newPassword string) error {
	return c.do(ctx, call{
		endpoint: "reset_password",
		method:   http.MethodPost,
		path:     "/api/internal/login/reset-password",
		form: map[string]string{
			"username": userName,
			"password": newPassword,
		},
	})
}

// ChangePassword changes the password of the logged-in user.
func (c *Client) ChangePassword(ctx context.Context, req types.UpdatePassword) error {
	return c.do(ctx, call{
		endpoint: "change_password",
		method:   http.MethodPost,
		path:     "/api/v1/users/change-password",
		body:     req,
	})
}

// AddUser creates a user who must set a new password on first login.
func (c *Client) AddUser(ctx context.Context, cred types.PasswordCredential) error {
	return c.do(ctx, call{
		endpoint: "add_user",
		method:   http.MethodPost,
		path:     "/api/v1/users/add",
		body:     cred,
	})
}
