package imgchest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// PostEndpoint is the API path of a single post
	PostEndpoint = "post"

	// UserEndpoint is the API path of a user profile
	UserEndpoint = "user"

	// FileEndpoint is the API path of a single file
	FileEndpoint = "file"

	// FilesEndpoint is the API path for bulk file updates
	FilesEndpoint = "files"

	// MinTitleLength is the shortest title the service accepts
	MinTitleLength = 3
)

var idPattern = regexp.MustCompile(`^[a-z0-9]{11}$`)

// IsValidID reports whether s looks like an imgchest post or file id
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// PostPath returns the API path of post id
func PostPath(id string) string {
	return PostEndpoint + "/" + url.PathEscape(id)
}

// PostFavoritePath returns the API path that toggles a favorite
func PostFavoritePath(id string) string {
	return PostPath(id) + "/favorite"
}

// PostAddPath returns the API path that appends images to a post
func PostAddPath(id string) string {
	return PostPath(id) + "/add"
}

// UserPath returns the API path of a user profile
func UserPath(name string) string {
	return UserEndpoint + "/" + url.PathEscape(name)
}

// FilePath returns the API path of file id
func FilePath(id string) string {
	return FileEndpoint + "/" + url.PathEscape(id)
}

// PostPageURL returns the public page of post id
func PostPageURL(siteURL, id string) string {
	return fmt.Sprintf("%s/p/%s", strings.TrimRight(siteURL, "/"), url.PathEscape(id))
}

// PostRef is a resolved reference to a public post page
type PostRef struct {
	// ID is empty when the reference is a URL without a recognizable /p/<id> path
	ID  string
	URL string
}

// ResolvePostRef turns a post id or post URL into the page to fetch.
// A bare id is expanded to <site>/p/<id>; a URL whose path contains /p/<id> is
// normalized to the same form so both spellings fetch the same page.
func ResolvePostRef(siteURL, ref string) (PostRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return PostRef{}, fmt.Errorf("empty post reference")
	}

	if !strings.Contains(ref, "://") {
		// host/p/<id> pasted without a scheme
		if strings.Contains(ref, "/p/") && !strings.HasPrefix(ref, "/") {
			return ResolvePostRef(siteURL, "https://"+ref)
		}
		if strings.ContainsAny(ref, "/?#") {
			return PostRef{}, fmt.Errorf("invalid post reference %q", ref)
		}
		return PostRef{ID: ref, URL: PostPageURL(siteURL, ref)}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return PostRef{}, fmt.Errorf("invalid post url %q: %w", ref, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return PostRef{}, fmt.Errorf("unsupported post url scheme %q", u.Scheme)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "p" && segments[i+1] != "" {
			id := segments[i+1]
			return PostRef{ID: id, URL: PostPageURL(siteURL, id)}, nil
		}
	}

	return PostRef{URL: u.String()}, nil
}
