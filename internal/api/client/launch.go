package client

import (
	"context"
	"net/http"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// GetConfig reads the pending configuration and its validity.
func (c *Client) GetConfig(ctx context.Context) (types.ConfigAndValidity, error) {
	var out types.ConfigAndValidity
	err := c.do(ctx, call{
		endpoint: "config_get",
		method:   http.MethodGet,
		path:     "/api/v1/config",
		out:      &out,
	})
	return out, err
}

// UpdateConfig sends a partial configuration. The server merges it into its
// copy and returns the merged result with recomputed validity.
func (c *Client) UpdateConfig(ctx context.Context, partial types.PendingConfig) (types.ConfigAndValidity, error) {
	var out types.ConfigAndValidity
	err := c.do(ctx, call{
		endpoint: "config_put",
		method:   http.MethodPut,
		path:     "/api/v1/config",
		body:     partial,
		out:      &out,
	})
	return out, err
}

// Launch starts the game server with the pending configuration.
func (c *Client) Launch(ctx context.Context) error {
	return c.command(ctx, "launch")
}

// Reconfigure restarts the running server with the pending configuration.
func (c *Client) Reconfigure(ctx context.Context) error {
	return c.command(ctx, "reconfigure")
}

// Stop stops the running server.
func (c *Client) Stop(ctx context.Context) error {
	return c.command(ctx, "stop")
}

func (c *Client) command(ctx context.Context, name string) error {
	return c.do(ctx, call{
		endpoint: name,
		method:   http.MethodPost,
		path:     "/api/v1/" + name,
	})
}
