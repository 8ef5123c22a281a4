package scrape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
)

const site = "https://imgchest.com"

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	doc, err := ParseDocument(f)
	require.NoError(t, err)
	return doc
}

func parseString(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestExtractPostComplete(t *testing.T) {
	post, token, err := ExtractPost(loadFixture(t, "post.html"), site)
	require.NoError(t, err)
	assert.Nil(t, token)

	assert.Equal(t, "3qe4gdvj4j2", post.ID)
	assert.Equal(t, "Donkey Kong - Video Game From The Mid 80's", post.Title)
	assert.Equal(t, "LunarLandr", post.Username)
	assert.Equal(t, uint64(1234), post.Views)
	assert.Equal(t, 3, post.ImageCount)
	assert.True(t, post.FullyLoaded)
	assert.False(t, post.NSFW)
	assert.Equal(t, models.ModeScrape, post.Source)
	assert.Empty(t, post.Privacy)

	require.Len(t, post.Images, 3)

	first := post.Images[0]
	assert.Equal(t, "nw7w6cmlvye", first.ID)
	assert.Equal(t, "https://cdn.imgchest.com/files/nw7w6cmlvye.png", first.Link)
	assert.Equal(t, "https://cdn.imgchest.com/thumb/nw7w6cmlvye.png", first.ThumbnailURL)
	assert.Equal(t, "Released in the arcades in 1981, Donkey Kong", first.Description)
	assert.Empty(t, first.VideoLink)

	assert.Equal(t, "amstrad - apple ii\nnes - pc", post.Images[1].Description)

	video := post.Images[2]
	assert.Equal(t, "https://cdn.imgchest.com/files/6yxkcz5ml7w.mp4", video.VideoLink)
	assert.Empty(t, video.Description)

	for i, img := range post.Images {
		assert.Equal(t, i+1, img.Position)
	}
}

func TestExtractPostTruncated(t *testing.T) {
	post, token, err := ExtractPost(loadFixture(t, "truncated.html"), site+"/")
	require.NoError(t, err)

	assert.False(t, post.FullyLoaded)
	assert.True(t, post.NSFW)
	assert.Len(t, post.Images, 2)
	assert.Equal(t, 5, post.ImageCount)

	require.NotNil(t, token)
	assert.Equal(t, models.ModeScrape, token.Mode)
	assert.Equal(t, "bigpost0001", token.PostID)
	assert.Equal(t, "https://imgchest.com/p/bigpost0001/loadAll", token.NextURL)
	assert.Equal(t, "tok-1", token.CSRFToken)
	assert.Equal(t, 2, token.Offset)
	assert.Equal(t, 3, token.Remaining)
}

func TestExtractPageContinuesPositions(t *testing.T) {
	token := &models.ContinuationToken{Mode: models.ModeScrape, PostID: "bigpost0001", Offset: 2, Remaining: 3}

	page, next, err := ExtractPage(loadFixture(t, "load_all_fragment.html"), token)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.True(t, page.FullyLoaded)

	require.Len(t, page.Images, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{page.Images[0].Position, page.Images[1].Position, page.Images[2].Position})
	assert.Equal(t, "a4", page.Images[1].ID)
	assert.Equal(t, "fourth", page.Images[1].Description)
}

func TestExtractPageNestedLoadAll(t *testing.T) {
	token := &models.ContinuationToken{Mode: models.ModeScrape, PostID: "p", NextURL: "u", CSRFToken: "c", Offset: 2}
	doc := parseString(t, `<div id="image-x"><a data-url="https://cdn/x.png"></a></div><button class="load-all">Load 7 more</button>`)

	page, next, err := ExtractPage(doc, token)
	require.NoError(t, err)
	assert.False(t, page.FullyLoaded)
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Offset)
	assert.Equal(t, 7, next.Remaining)
	assert.Equal(t, "c", next.CSRFToken)
	assert.Equal(t, 2, token.Offset, "input token must not be mutated")
}

func TestExtractPostMissingMarkers(t *testing.T) {
	full, err := os.ReadFile(filepath.Join("testdata", "post.html"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		remove string
		field  string
	}{
		{"id", `<meta property="og:url" content="https://imgchest.com/p/3qe4gdvj4j2">`, FieldID},
		{"title", `<meta property="og:title" content="  Donkey Kong - Video Game From The Mid 80's ">`, FieldTitle},
		{"username", `<a href="https://imgchest.com/u/LunarLandr">LunarLandr</a>`, FieldUsername},
		{"views", `<meta name="twitter:description" content="1,234 views - Image Chest">`, FieldViews},
		{"csrf", `<meta name="csrf-token" content="csrf-abc123">`, FieldCSRF},
		{"image link", `<a data-url="https://cdn.imgchest.com/files/kwye3cpag4b.png" href="#"></a>`, FieldImageLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := strings.Replace(string(full), tt.remove, "", 1)
			require.NotEqual(t, string(full), html, "fixture must contain the marker")

			_, _, err := ExtractPost(parseString(t, html), site)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.MissingField(tt.field))
			assert.Equal(t, apperrors.KindScrape, apperrors.KindOf(err))
		})
	}
}

func TestExtractPostBlankTitle(t *testing.T) {
	doc := parseString(t, `<html><head>
<meta property="og:url" content="https://imgchest.com/p/abc">
<meta property="og:title" content="   ">
</head><body></body></html>`)

	_, _, err := ExtractPost(doc, site)
	assert.ErrorIs(t, err, apperrors.MissingField(FieldTitle))
}

func TestExtractPostUnparseableViews(t *testing.T) {
	full, err := os.ReadFile(filepath.Join("testdata", "post.html"))
	require.NoError(t, err)
	html := strings.Replace(string(full), `content="1,234 views - Image Chest"`, `content="many views"`, 1)

	_, _, err = ExtractPost(parseString(t, html), site)
	var scrapeErr *apperrors.ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, apperrors.ScrapeUnparseable, scrapeErr.Reason)
	assert.Equal(t, FieldViews, scrapeErr.Field)
}

func TestEmptyContainerVersusMissingContainer(t *testing.T) {
	head := `<html><head>
<meta property="og:url" content="https://imgchest.com/p/empty">
<meta property="og:title" content="Empty post">
<meta name="twitter:description" content="0 views">
<meta name="csrf-token" content="t">
</head><body><a href="/u/someone">someone</a>`

	post, token, err := ExtractPost(parseString(t, head+`<div id="post-images"></div></body></html>`), site)
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Empty(t, post.Images)
	assert.True(t, post.FullyLoaded)
	assert.Equal(t, "someone", post.Username)

	_, _, err = ExtractPost(parseString(t, head+`</body></html>`), site)
	assert.ErrorIs(t, err, apperrors.MissingField(FieldContainer))
}

func TestUnparseableLoadAll(t *testing.T) {
	full, err := os.ReadFile(filepath.Join("testdata", "truncated.html"))
	require.NoError(t, err)
	html := strings.Replace(string(full), "Load 3 more", "Load everything", 1)

	_, _, err = ExtractPost(parseString(t, html), site)
	assert.ErrorIs(t, err, &apperrors.ScrapeError{Reason: apperrors.ScrapeUnparseable, Field: FieldLoadAll})
}

func TestMarkerOrderIsIrrelevant(t *testing.T) {
	doc := parseString(t, `<html><body>
<div id="post-images"><div id="image-z1"><a data-url="https://cdn/z1.png"></a></div></div>
<a href="https://imgchest.com/u/late">late</a>
<meta name="csrf-token" content="t">
<meta name="twitter:description" content="9 views">
<meta property="og:title" content="Reordered">
<meta property="og:url" content="https://imgchest.com/p/reordered?ref=x">
<section class="unknown-widget">ignored</section>
</body></html>`)

	post, _, err := ExtractPost(doc, site)
	require.NoError(t, err)
	assert.Equal(t, "reordered", post.ID)
	assert.Equal(t, "late", post.Username)
	assert.Equal(t, uint64(9), post.Views)
}
