package scrape

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
)

// Selectors for the public post page. Only their presence matters, never their order.
const (
	selectorID          = `meta[property="og:url"]`
	selectorTitle       = `meta[property="og:title"]`
	selectorUser        = `a[href*="/u/"]`
	selectorViews       = `meta[name="twitter:description"]`
	selectorContainer   = `#post-images`
	selectorImages      = `#post-images > div[id^="image"]`
	selectorLoadAll     = `#post-images .load-all`
	selectorCSRF        = `meta[name="csrf-token"]`
	selectorRating      = `meta[name="rating"]`
	selectorDescription = `.description-wrapper`
	selectorLink        = `a[data-url]`
	selectorVideo       = `video source[src]`
	selectorThumbnail   = `img[src]`
)

// Field names reported in ScrapeError
const (
	FieldID        = "id"
	FieldTitle     = "title"
	FieldUsername  = "username"
	FieldViews     = "views"
	FieldContainer = "post-images"
	FieldCSRF      = "csrf-token"
	FieldLoadAll   = "load-all"
	FieldImageID   = "image.id"
	FieldImageLink = "image.link"
	FieldDocument  = "document"
)

// ParseDocument parses a page or fragment into a queryable document
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, apperrors.Unparseable(FieldDocument, err)
	}
	return doc, nil
}

// ExtractPost builds a scraped post from a full post page.
// siteURL is the site root used to build the follow-up URL when the page is truncated.
func ExtractPost(doc *goquery.Document, siteURL string) (*models.Post, *models.ContinuationToken, error) {
	id, ok := afterSegment(attr(doc.Find(selectorID), "content"), "/p/")
	if !ok {
		return nil, nil, apperrors.MissingField(FieldID)
	}

	title := strings.TrimSpace(attr(doc.Find(selectorTitle), "content"))
	if title == "" {
		return nil, nil, apperrors.MissingField(FieldTitle)
	}

	username := ""
	doc.Find(selectorUser).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		username, ok = afterSegment(s.AttrOr("href", ""), "/u/")
		return !ok
	})
	if username == "" {
		return nil, nil, apperrors.MissingField(FieldUsername)
	}

	viewsMeta := doc.Find(selectorViews)
	if viewsMeta.Length() == 0 {
		return nil, nil, apperrors.MissingField(FieldViews)
	}
	views, err := parseViews(viewsMeta.First().AttrOr("content", ""))
	if err != nil {
		return nil, nil, apperrors.Unparseable(FieldViews, err)
	}

	if doc.Find(selectorContainer).Length() == 0 {
		return nil, nil, apperrors.MissingField(FieldContainer)
	}

	csrf := strings.TrimSpace(attr(doc.Find(selectorCSRF), "content"))
	if csrf == "" {
		return nil, nil, apperrors.MissingField(FieldCSRF)
	}

	images, err := extractImages(doc.Find(selectorImages), 0)
	if err != nil {
		return nil, nil, err
	}

	remaining, hasMore, err := loadAllCount(doc.Find(selectorLoadAll))
	if err != nil {
		return nil, nil, err
	}

	post := &models.Post{
		ID:          id,
		Title:       title,
		Username:    username,
		NSFW:        isAdult(attr(doc.Find(selectorRating), "content")),
		Views:       views,
		ImageCount:  len(images) + remaining,
		Images:      images,
		FullyLoaded: !hasMore,
		Source:      models.ModeScrape,
	}

	if !hasMore {
		return post, nil, nil
	}

	return post, &models.ContinuationToken{
		Mode:      models.ModeScrape,
		PostID:    id,
		NextURL:   LoadAllURL(siteURL, id),
		CSRFToken: csrf,
		Offset:    len(images),
		Remaining: remaining,
	}, nil
}

// ExtractPage reads a follow-up fragment holding the rest of a post's images.
// Positions continue after token.Offset.
func ExtractPage(doc *goquery.Document, token *models.ContinuationToken) (*models.Post, *models.ContinuationToken, error) {
	var items *goquery.Selection
	if doc.Find(selectorContainer).Length() > 0 {
		items = doc.Find(selectorImages)
	} else {
		items = doc.Find("body").Children().Filter(`div[id^="image"]`)
	}

	images, err := extractImages(items, token.Offset)
	if err != nil {
		return nil, nil, err
	}

	remaining, hasMore, err := loadAllCount(doc.Find(".load-all"))
	if err != nil {
		return nil, nil, err
	}

	page := &models.Post{
		ID:          token.PostID,
		Images:      images,
		FullyLoaded: !hasMore,
		Source:      models.ModeScrape,
	}
	if !hasMore {
		return page, nil, nil
	}

	next := *token
	next.Offset = token.Offset + len(images)
	next.Remaining = remaining
	return page, &next, nil
}

// LoadAllURL is the endpoint returning the images hidden behind "Load N more"
func LoadAllURL(siteURL, id string) string {
	return strings.TrimRight(siteURL, "/") + "/p/" + id + "/loadAll"
}

func extractImages(items *goquery.Selection, offset int) ([]models.Image, error) {
	images := make([]models.Image, 0, items.Length())
	var err error
	items.EachWithBreak(func(i int, s *goquery.Selection) bool {
		var img models.Image
		img, err = extractImage(s, offset+i+1)
		if err != nil {
			return false
		}
		images = append(images, img)
		return true
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func extractImage(s *goquery.Selection, position int) (models.Image, error) {
	rawID := s.AttrOr("id", "")
	_, id, found := strings.Cut(rawID, "-")
	if !found || id == "" {
		return models.Image{}, apperrors.MissingField(FieldImageID)
	}

	link := strings.TrimSpace(attr(s.Find(selectorLink), "data-url"))
	if link == "" {
		return models.Image{}, apperrors.MissingField(FieldImageLink)
	}

	return models.Image{
		ID:           id,
		Link:         link,
		ThumbnailURL: strings.TrimSpace(attr(s.Find(selectorThumbnail), "src")),
		VideoLink:    strings.TrimSpace(attr(s.Find(selectorVideo), "src")),
		Description:  description(s.Find(selectorDescription)),
		Position:     position,
	}, nil
}

// description joins the text of the first description block, dropping its heading
func description(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var parts []string
	for _, text := range textNodes(s.Get(0)) {
		text = strings.TrimSpace(text)
		if text == "" || text == "Description" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

func textNodes(n *html.Node) []string {
	if n.Type == html.TextNode {
		return []string{n.Data}
	}
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, textNodes(c)...)
	}
	return out
}

// loadAllCount reads "Load N more". A missing button means the page is complete.
func loadAllCount(s *goquery.Selection) (int, bool, error) {
	if s.Length() == 0 {
		return 0, false, nil
	}
	words := strings.Fields(s.First().Text())
	if len(words) < 2 {
		return 0, false, apperrors.Unparseable(FieldLoadAll, fmt.Errorf("unexpected label %q", s.First().Text()))
	}
	n, err := strconv.Atoi(strings.ReplaceAll(words[1], ",", ""))
	if err != nil || n < 0 {
		return 0, false, apperrors.Unparseable(FieldLoadAll, fmt.Errorf("unexpected count %q", words[1]))
	}
	return n, true, nil
}

// parseViews reads the leading number of "1,234 views ..."
func parseViews(content string) (uint64, error) {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0, fmt.Errorf("empty view counter")
	}
	return strconv.ParseUint(strings.ReplaceAll(words[0], ",", ""), 10, 64)
}

func isAdult(rating string) bool {
	rating = strings.ToLower(strings.TrimSpace(rating))
	return rating == "adult" || rating == "rta-5042-1996-1400-1577-rta"
}

// afterSegment returns the path segment following marker, e.g. the id in ".../p/<id>"
func afterSegment(raw, marker string) (string, bool) {
	_, rest, found := strings.Cut(raw, marker)
	if !found {
		return "", false
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

func attr(s *goquery.Selection, name string) string {
	return s.First().AttrOr(name, "")
}
