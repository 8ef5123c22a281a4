package models

import (
	"fmt"
	"time"
)

// Mode identifies which retrieval mechanism produced a post
type Mode int

const (
	// ModeAPI is retrieval through the authenticated JSON API
	ModeAPI Mode = iota + 1
	// ModeScrape is anonymous retrieval by parsing the public post page
	ModeScrape
)

func (m Mode) String() string {
	switch m {
	case ModeAPI:
		return "api"
	case ModeScrape:
		return "scrape"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Privacy is the visibility setting of a post
type Privacy string

const (
	PrivacyPublic Privacy = "public"
	PrivacyHidden Privacy = "hidden"
	PrivacySecret Privacy = "secret"
)

// ParsePrivacy validates a privacy string
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(s); p {
	case PrivacyPublic, PrivacyHidden, PrivacySecret:
		return p, nil
	default:
		return "", fmt.Errorf("unknown privacy %q", s)
	}
}

// Post is a titled gallery of images.
//
// A post built by the API carries Privacy, Created and (for the owner) DeleteURL.
// A scraped post carries VideoLink on its images instead. Both share the rest.
type Post struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Username   string     `json:"username"`
	Privacy    Privacy    `json:"privacy,omitempty"`
	NSFW       bool       `json:"nsfw"`
	Views      uint64     `json:"views"`
	ImageCount int        `json:"image_count"`
	Created    *time.Time `json:"created,omitempty"`
	DeleteURL  string     `json:"delete_url,omitempty"`
	Images     []Image    `json:"images"`

	// FullyLoaded is false while Images is only a prefix of the post
	FullyLoaded bool `json:"fully_loaded"`
	Source      Mode `json:"-"`
}

// Image is a single file of a post
type Image struct {
	ID           string     `json:"id"`
	Link         string     `json:"link"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	VideoLink    string     `json:"video_link,omitempty"`
	Description  string     `json:"description,omitempty"`
	Position     int        `json:"position"`
	Created      *time.Time `json:"created,omitempty"`
	OriginalName string     `json:"original_name,omitempty"`
}

// ContinuationToken records how to fetch the rest of a partially loaded post.
// It is tagged with the mode that produced it and is never valid for the other mode.
type ContinuationToken struct {
	Mode   Mode
	PostID string

	// Cursor is the API "next" cursor
	Cursor string

	// NextURL and CSRFToken drive the scraped "load all" follow-up
	NextURL   string
	CSRFToken string

	// Offset is the number of images already held by the caller
	Offset int
	// Remaining is the count the page claims is still missing, when known
	Remaining int
}

// User is an imgchest account
type User struct {
	Name     string     `json:"name"`
	Posts    uint64     `json:"posts"`
	Comments uint64     `json:"comments"`
	Created  *time.Time `json:"created,omitempty"`
}

// File is an image returned by the file endpoints
type File struct {
	Image
	PostID string `json:"post_id,omitempty"`
}
