package imgchest

import (
	"net/url"
	"strconv"
	"sync"
	"unicode/utf8"

	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
	"imgchest/pkg/transport"
)

// CreatePostBuilder collects the parts of a new post. Its methods are safe for concurrent use.
// It is single use: CreatePost consumes it whether or not the upload succeeds.
type CreatePostBuilder struct {
	mu        sync.Mutex
	title     string
	privacy   models.Privacy
	anonymous bool
	nsfw      bool
	images    []*models.UploadFile
	consumed  bool
}

// NewCreatePostBuilder returns an empty builder
func NewCreatePostBuilder() *CreatePostBuilder {
	return &CreatePostBuilder{}
}

// Title sets the post title
func (b *CreatePostBuilder) Title(title string) *CreatePostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = title
	return b
}

// Privacy sets the post visibility
func (b *CreatePostBuilder) Privacy(p models.Privacy) *CreatePostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.privacy = p
	return b
}

// Anonymous marks the post as not owned by the token's account
func (b *CreatePostBuilder) Anonymous(anonymous bool) *CreatePostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.anonymous = anonymous
	return b
}

// NSFW flags the post as adult content
func (b *CreatePostBuilder) NSFW(nsfw bool) *CreatePostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nsfw = nsfw
	return b
}

// Image appends a file; images are uploaded in the order they are added
func (b *CreatePostBuilder) Image(f *models.UploadFile) *CreatePostBuilder {
	if f == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.images = append(b.images, f)
	return b
}

// Len returns the number of images added so far
func (b *CreatePostBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.images)
}

// validate checks the builder without consuming it
func (b *CreatePostBuilder) validate() error {
	if b.consumed {
		return &apperrors.ValidationError{Reason: apperrors.ValidationConsumed}
	}
	if len(b.images) == 0 {
		return &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "images"}
	}
	if b.title != "" && utf8.RuneCountInString(b.title) < MinTitleLength {
		return &apperrors.ValidationError{Reason: apperrors.ValidationTitleTooShort, Field: "title"}
	}
	for _, img := range b.images {
		if img.Consumed() {
			return &apperrors.ValidationError{Reason: apperrors.ValidationConsumed, Field: "images"}
		}
	}
	return nil
}

// take validates and marks the builder used, returning the multipart body
func (b *CreatePostBuilder) take() (transport.Body, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.validate(); err != nil {
		return nil, err
	}
	b.consumed = true

	var fields []transport.Field
	if b.title != "" {
		fields = append(fields, transport.Field{Name: "title", Value: b.title})
	}
	if b.privacy != "" {
		fields = append(fields, transport.Field{Name: "privacy", Value: string(b.privacy)})
	}
	fields = append(fields,
		transport.Field{Name: "anonymous", Value: strconv.FormatBool(b.anonymous)},
		transport.Field{Name: "nsfw", Value: strconv.FormatBool(b.nsfw)},
	)

	return transport.MultipartBody(fields, imageParts(b.images)), nil
}

func imageParts(files []*models.UploadFile) []transport.FilePart {
	parts := make([]transport.FilePart, 0, len(files))
	for _, f := range files {
		parts = append(parts, transport.FilePart{Name: "images[]", File: f})
	}
	return parts
}

// UpdatePostBuilder holds the optional fields of a post update.
// Unset fields are left unchanged by the service.
type UpdatePostBuilder struct {
	title   *string
	privacy *models.Privacy
	nsfw    *bool
}

// NewUpdatePostBuilder returns a builder that changes nothing
func NewUpdatePostBuilder() *UpdatePostBuilder {
	return &UpdatePostBuilder{}
}

// Title sets a new title
func (b *UpdatePostBuilder) Title(title string) *UpdatePostBuilder {
	b.title = &title
	return b
}

// Privacy sets a new visibility
func (b *UpdatePostBuilder) Privacy(p models.Privacy) *UpdatePostBuilder {
	b.privacy = &p
	return b
}

// NSFW sets the adult content flag
func (b *UpdatePostBuilder) NSFW(nsfw bool) *UpdatePostBuilder {
	b.nsfw = &nsfw
	return b
}

func (b *UpdatePostBuilder) form() (url.Values, error) {
	values := url.Values{}
	if b.title != nil {
		if utf8.RuneCountInString(*b.title) < MinTitleLength {
			return nil, &apperrors.ValidationError{Reason: apperrors.ValidationTitleTooShort, Field: "title"}
		}
		values.Set("title", *b.title)
	}
	if b.privacy != nil {
		values.Set("privacy", string(*b.privacy))
	}
	if b.nsfw != nil {
		values.Set("nsfw", strconv.FormatBool(*b.nsfw))
	}
	if len(values) == 0 {
		return nil, &apperrors.ValidationError{Reason: apperrors.ValidationEmpty, Field: "update"}
	}
	return values, nil
}

// FileUpdate is one entry of a bulk description update
type FileUpdate struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}
