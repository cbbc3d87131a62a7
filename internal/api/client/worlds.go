package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// ListWorlds returns saved worlds and their backup generations.
func (c *Client) ListWorlds(ctx context.Context) ([]types.World, error) {
	var out []types.World
	err := c.do(ctx, call{
		endpoint: "worlds_list",
		method:   http.MethodGet,
		path:     "/api/v1/worlds",
		out:      &out,
	})
	return out, err
}

// DeleteWorld deletes a saved world with all of its generations.
func (c *Client) DeleteWorld(ctx context.Context, worldName string) error {
	return c.do(ctx, call{
		endpoint: "worlds_delete",
		method:   http.MethodDelete,
		path:     "/api/v1/worlds",
		body:     types.DeleteWorldInput{WorldName: worldName},
	})
}

// MCVersions lists the game server versions that can be launched.
func (c *Client) MCVersions(ctx context.Context) ([]types.MCVersion, error) {
	var out []types.MCVersion
	err := c.do(ctx, call{
		endpoint: "mcversions",
		method:   http.MethodGet,
		path:     "/api/v1/mcversions",
		out:      &out,
	})
	return out, err
}

// SystemInfo describes the machine of the running server.
func (c *Client) SystemInfo(ctx context.Context) (types.SystemInfo, error) {
	var out types.SystemInfo
	err := c.do(ctx, call{
		endpoint: "systeminfo",
		method:   http.MethodGet,
		path:     "/api/v1/systeminfo",
		out:      &out,
	})
	return out, err
}

// WorldInfo describes the world loaded by the running server.
func (c *Client) WorldInfo(ctx context.Context) (types.WorldInfo, error) {
	var out types.WorldInfo
	err := c.do(ctx, call{
		endpoint: "worldinfo",
		method:   http.MethodGet,
		path:     "/api/v1/worldinfo",
		out:      &out,
	})
	return out, err
}

// TakeSnapshot saves a quick-undo snapshot into slot.
func (c *Client) TakeSnapshot(ctx context.Context, slot int) error {
	return c.do(ctx, call{
		endpoint: "quickundo_snapshot",
		method:   http.MethodPost,
		path:     "/api/v1/quickundo/snapshot",
		body:     types.SnapshotConfiguration{Slot: slot},
	})
}

// UndoSnapshot restores the world from the snapshot in slot.
func (c *Client) UndoSnapshot(ctx context.Context, slot int) error {
	return c.do(ctx, call{
		endpoint: "quickundo_undo",
		method:   http.MethodPost,
		path:     "/api/v1/quickundo/undo",
		body:     types.SnapshotConfiguration{Slot: slot},
	})
}

// CreateDownloadLink returns a pre-signed URL for a backup generation.
func (c *Client) CreateDownloadLink(ctx context.Context, generationID string) (types.DelegatedURL, error) {
	var out types.DelegatedURL
	err := c.do(ctx, call{
		endpoint: "world_link_download",
		method:   http.MethodPost,
		path:     "/api/v1/world-link/download",
		body:     types.CreateWorldDownloadLinkReq{ID: generationID},
		out:      &out,
	})
	return out, err
}

// CreateUploadLink returns a pre-signed URL accepting a world archive of
// the given MIME type.
func (c *Client) CreateUploadLink(ctx context.Context, worldName, mimeType string) (types.DelegatedURL, error) {
	var out types.DelegatedURL
	err := c.do(ctx, call{
		endpoint: "world_link_upload",
		method:   http.MethodPost,
		path:     "/api/v1/world-link/upload",
		body:     types.CreateWorldUploadLinkReq{WorldName: worldName, MimeType: mimeType},
		out:      &out,
	})
	return out, err
}

// uploadTypes are the archive formats the control panel accepts.
var uploadTypes = []string{"application/zip", "application/x-tar", "application/zstd", "application/gzip"}

// UploadWorld uploads a world archive from path under worldName. The
// archive type is detected from its content.
func (c *Client) UploadWorld(ctx context.Context, worldName, path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect archive type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), uploadTypes...) {
		return fmt.Errorf("unsupported archive type %s", mtype.String())
	}

	link, err := c.CreateUploadLink(ctx, worldName, mtype.String())
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	return c.put(ctx, link.URL, mtype.String(), f)
}

func (c *Client) put(ctx context.Context, url, contentType string, body io.Reader) error {
	// Delegated URLs point at object storage: no bearer token, no envelope.
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Put(url)
	if err != nil {
		return &TransportError{Endpoint: "world_upload", Err: err}
	}
	if resp.IsError() {
		return &TransportError{Endpoint: "world_upload", Status: resp.StatusCode(), Err: fmt.Errorf("%s", resp.Status())}
	}
	return nil
}

// DownloadWorld streams a backup generation into w and returns the number
// of bytes written.
func (c *Client) DownloadWorld(ctx context.Context, generationID string, w io.Writer) (int64, error) {
	link, err := c.CreateDownloadLink(ctx, generationID)
	if err != nil {
		return 0, err
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link.URL)
	if err != nil {
		return 0, &TransportError{Endpoint: "world_download", Err: err}
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.IsError() {
		return 0, &TransportError{Endpoint: "world_download", Status: resp.StatusCode(), Err: fmt.Errorf("%s", resp.Status())}
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, &TransportError{Endpoint: "world_download", Err: err}
	}
	return n, nil
}
