package imgchest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"imgchest/pkg/apimap"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
	"imgchest/pkg/transport"
)

// Messages the service returns from the favorite toggle
const (
	FavoriteAddedMessage   = "Favorite added."
	FavoriteRemovedMessage = "Favorite removed."
)

// GetPost fetches a post through the API, following continuation cursors until
// every image is loaded. It requires a token and fails before any request without one.
func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if !c.HasToken() {
		return nil, apperrors.ErrMissingToken
	}
	return c.assembler.Assemble(ctx, &apiSource{transport: c.transport}, id)
}

// GetScrapedPost reads a post from its public page. ref is a post id or a post URL.
// Images hidden behind "Load N more" are fetched before returning.
func (c *Client) GetScrapedPost(ctx context.Context, ref string) (*models.Post, error) {
	return c.assembler.Assemble(ctx, &scrapeSource{transport: c.transport}, ref)
}

// CreatePost uploads the builder's images as a new post.
// The builder is validated before any request and consumed once the upload starts.
func (c *Client) CreatePost(ctx context.Context, b *CreatePostBuilder) (*models.Post, error) {
	if b == nil {
		return nil, &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "images"}
	}

	b.mu.Lock()
	err := b.validate()
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !c.HasToken() {
		return nil, apperrors.ErrMissingToken
	}

	body, err := b.take()
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPost,
		URL:          PostEndpoint,
		AuthRequired: true,
		Body:         body,
	})
	if err != nil {
		return nil, err
	}
	return c.completePost(ctx, resp.Body)
}

// UpdatePost changes a post's title, privacy or nsfw flag
func (c *Client) UpdatePost(ctx context.Context, id string, b *UpdatePostBuilder) (*models.Post, error) {
	if b == nil {
		return nil, &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "update"}
	}
	form, err := b.form()
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPatch,
		URL:          PostPath(id),
		AuthRequired: true,
		Body:         transport.FormBody(form),
	})
	if err != nil {
		return nil, err
	}
	return c.completePost(ctx, resp.Body)
}

// DeletePost removes a post owned by the token's account
func (c *Client) DeletePost(ctx context.Context, id string) error {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodDelete,
		URL:          PostPath(id),
		AuthRequired: true,
	})
	if err != nil {
		return err
	}
	_, err = apimap.MapCompleted(resp.Status, resp.Body)
	return err
}

// FavoritePost toggles the favorite flag and reports whether the post is now a favorite
func (c *Client) FavoritePost(ctx context.Context, id string) (bool, error) {
	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPost,
		URL:          PostFavoritePath(id),
		AuthRequired: true,
	})
	if err != nil {
		return false, err
	}

	msg, err := apimap.MapCompleted(resp.Status, resp.Body)
	if err != nil {
		return false, err
	}

	switch strings.TrimSpace(msg) {
	case FavoriteAddedMessage:
		return true, nil
	case FavoriteRemovedMessage:
		return false, nil
	default:
		return false, &apperrors.MapError{Field: "message", Err: fmt.Errorf("unexpected message %q", msg)}
	}
}

// AddPostImages appends files to an existing post, in order
func (c *Client) AddPostImages(ctx context.Context, id string, files ...*models.UploadFile) (*models.Post, error) {
	if len(files) == 0 {
		return nil, &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "images"}
	}
	for _, f := range files {
		if f == nil || f.Consumed() {
			return nil, &apperrors.ValidationError{Reason: apperrors.ValidationConsumed, Field: "images"}
		}
	}

	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodPost,
		URL:          PostAddPath(id),
		AuthRequired: true,
		Body:         transport.MultipartBody(nil, imageParts(files)),
	})
	if err != nil {
		return nil, err
	}
	return c.completePost(ctx, resp.Body)
}

// completePost maps a post returned by a write and loads any remaining pages
func (c *Client) completePost(ctx context.Context, body []byte) (*models.Post, error) {
	post, token, err := apimap.MapPost(body)
	if err != nil {
		return nil, err
	}
	return c.assembler.Continue(ctx, &apiSource{transport: c.transport}, post, token)
}
