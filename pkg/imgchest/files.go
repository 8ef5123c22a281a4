package imgchest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"imgchest/pkg/apimap"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
	"imgchest/pkg/transport"
)

// GetUser fetches a public profile
func (c *Client) GetUser(ctx context.Context, name string) (*models.User, error) {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodGet,
		URL:          UserPath(name),
		AuthRequired: true,
	})
	if err != nil {
		return nil, err
	}
	return apimap.MapUser(resp.Body)
}

// GetFile fetches a single file
func (c *Client) GetFile(ctx context.Context, id string) (*models.File, error) {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodGet,
		URL:          FilePath(id),
		AuthRequired: true,
	})
	if err != nil {
		return nil, err
	}
	return apimap.MapFile(resp.Body)
}

// UpdateFile replaces a file's description
func (c *Client) UpdateFile(ctx context.Context, id, description string) (*models.File, error) {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPatch,
		URL:          FilePath(id),
		AuthRequired: true,
		Body:         transport.FormBody(url.Values{"description": {description}}),
	})
	if err != nil {
		return nil, err
	}
	return apimap.MapFile(resp.Body)
}

// DeleteFile removes a file from its post
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodDelete,
		URL:          FilePath(id),
		AuthRequired: true,
	})
	if err != nil {
		return err
	}
	_, err = apimap.MapCompleted(resp.Status, resp.Body)
	return err
}

// UpdateFilesBulk sets the descriptions of several files in one request
func (c *Client) UpdateFilesBulk(ctx context.Context, updates []FileUpdate) ([]models.File, error) {
	if len(updates) == 0 {
		return nil, &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "data"}
	}

	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPatch,
		URL:          FilesEndpoint,
		AuthRequired: true,
		Body:         transport.JSONBody(map[string][]FileUpdate{"data": updates}),
	})
	if err != nil {
		return nil, err
	}
	return apimap.MapFiles(resp.Body)
}

// DownloadFile streams the content at link into w. No token is sent.
// link must be an absolute http(s) URL; relative links are never resolved against the API.
func (c *Client) DownloadFile(ctx context.Context, link string, w io.Writer) (int64, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return 0, fmt.Errorf("download link must be an absolute http(s) URL, got %q", link)
	}
	return c.transport.Stream(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    link,
	}, w)
}
