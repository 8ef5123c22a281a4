package imgchest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePostRef(t *testing.T) {
	const site = "https://imgchest.com"

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantURL string
		wantErr bool
	}{
		{name: "bare id", ref: "3qe4gdvj4j2", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "padded id", ref: "  3qe4gdvj4j2\n", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "post url", ref: "https://imgchest.com/p/3qe4gdvj4j2", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "post url with slash and query", ref: "https://www.imgchest.com/p/3qe4gdvj4j2/?x=1", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "post url without scheme", ref: "imgchest.com/p/3qe4gdvj4j2", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "www post url without scheme", ref: "www.imgchest.com/p/3qe4gdvj4j2/", wantID: "3qe4gdvj4j2", wantURL: site + "/p/3qe4gdvj4j2"},
		{name: "other url", ref: "https://imgchest.com/u/someone", wantURL: "https://imgchest.com/u/someone"},
		{name: "empty", ref: "   ", wantErr: true},
		{name: "path without scheme", ref: "p/3qe4gdvj4j2", wantErr: true},
		{name: "absolute path", ref: "/p/3qe4gdvj4j2", wantErr: true},
		{name: "unsupported scheme", ref: "ftp://imgchest.com/p/3qe4gdvj4j2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePostRef(site, tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantURL, got.URL)
		})
	}
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("3qe4gdvj4j2"))
	assert.False(t, IsValidID("3QE4GDVJ4J2"))
	assert.False(t, IsValidID("short"))
	assert.False(t, IsValidID("3qe4gdvj4j2x"))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "post/abc", PostPath("abc"))
	assert.Equal(t, "post/abc/favorite", PostFavoritePath("abc"))
	assert.Equal(t, "post/abc/add", PostAddPath("abc"))
	assert.Equal(t, "user/some%20one", UserPath("some one"))
	assert.Equal(t, "file/f1", FilePath("f1"))
	assert.Equal(t, "https://imgchest.com/p/abc", PostPageURL("https://imgchest.com/", "abc"))
}
