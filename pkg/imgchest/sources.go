package imgchest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"imgchest/pkg/apimap"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
	"imgchest/pkg/scrape"
	"imgchest/pkg/transport"
)

// apiSource pages through a post with the authenticated JSON API
type apiSource struct {
	transport *transport.Transport
}

func (s *apiSource) Mode() models.Mode { return models.ModeAPI }

func (s *apiSource) FetchFirstPage(ctx context.Context, id string) (*models.Post, *models.ContinuationToken, error) {
	resp, err := s.transport.Execute(ctx, &transport.Request{
		Method:       http.MethodGet,
		URL:          PostPath(id),
		AuthRequired: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return apimap.MapPost(resp.Body)
}

func (s *apiSource) FetchNextPage(ctx context.Context, token *models.ContinuationToken) (*models.Post, *models.ContinuationToken, error) {
	if token.Mode != models.ModeAPI {
		return nil, nil, mismatch(models.ModeAPI, token.Mode)
	}

	req := &transport.Request{
		Method:       http.MethodGet,
		AuthRequired: true,
	}
	if strings.HasPrefix(token.Cursor, "http://") || strings.HasPrefix(token.Cursor, "https://") {
		if err := sameOrigin(token.Cursor, s.transport.Config().Snapshot().BaseURL); err != nil {
			return nil, nil, &apperrors.MapError{Field: "next", Err: err}
		}
		req.URL = token.Cursor
	} else {
		req.URL = PostPath(token.PostID)
		req.Query = url.Values{"cursor": {token.Cursor}}
	}

	resp, err := s.transport.Execute(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	page, next, err := apimap.MapPost(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if next != nil {
		next.Offset = token.Offset + len(page.Images)
	}
	return page, next, nil
}

// sameOrigin rejects an absolute cursor that would carry the token to another host
func sameOrigin(cursor, baseURL string) error {
	c, err := url.Parse(cursor)
	if err != nil {
		return err
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	if !strings.EqualFold(c.Scheme, b.Scheme) || !strings.EqualFold(c.Host, b.Host) {
		return fmt.Errorf("cursor %s://%s is outside the API at %s://%s", c.Scheme, c.Host, b.Scheme, b.Host)
	}
	return nil
}

// scrapeSource pages through a post by reading its public page
type scrapeSource struct {
	transport *transport.Transport
}

func (s *scrapeSource) Mode() models.Mode { return models.ModeScrape }

func (s *scrapeSource) FetchFirstPage(ctx context.Context, ref string) (*models.Post, *models.ContinuationToken, error) {
	siteURL := s.transport.Config().Snapshot().SiteURL

	target, err := ResolvePostRef(siteURL, ref)
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.transport.Execute(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    target.URL,
		Header: http.Header{"Accept": {"text/html,application/xhtml+xml"}},
	})
	if err != nil {
		return nil, nil, err
	}

	doc, err := scrape.ParseDocument(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, err
	}
	return scrape.ExtractPost(doc, siteURL)
}

func (s *scrapeSource) FetchNextPage(ctx context.Context, token *models.ContinuationToken) (*models.Post, *models.ContinuationToken, error) {
	if token.Mode != models.ModeScrape {
		return nil, nil, mismatch(models.ModeScrape, token.Mode)
	}

	resp, err := s.transport.Execute(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    token.NextURL,
		Header: http.Header{"X-Requested-With": {"XMLHttpRequest"}},
		Body:   transport.FormBody(url.Values{"_token": {token.CSRFToken}}),
	})
	if err != nil {
		return nil, nil, err
	}

	doc, err := scrape.ParseDocument(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, err
	}
	return scrape.ExtractPage(doc, token)
}

func mismatch(source, token models.Mode) error {
	return &apperrors.AssemblyError{
		Reason:   apperrors.AssemblyModeMismatch,
		Expected: source.String(),
		Got:      token.String(),
	}
}
