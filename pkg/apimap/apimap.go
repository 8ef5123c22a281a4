package apimap

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Next  json.RawMessage `json:"next"`
	Links *struct {
		Next json.RawMessage `json:"next"`
	} `json:"links"`
}

type apiPost struct {
	ID         *string         `json:"id"`
	Title      *string         `json:"title"`
	Username   *string         `json:"username"`
	Privacy    *string         `json:"privacy"`
	Views      *uint64         `json:"views"`
	NSFW       json.RawMessage `json:"nsfw"`
	ImageCount *int            `json:"image_count"`
	Created    *string         `json:"created"`
	DeleteURL  *string         `json:"delete_url"`
	Images     json.RawMessage `json:"images"`
	Next       json.RawMessage `json:"next"`
}

type apiFile struct {
	ID           *string `json:"id"`
	Description  *string `json:"description"`
	Link         *string `json:"link"`
	Position     *int    `json:"position"`
	Created      *string `json:"created"`
	OriginalName *string `json:"original_name"`
	PostID       *string `json:"post_id"`
}

type apiUser struct {
	Name     *string `json:"name"`
	Posts    uint64  `json:"posts"`
	Comments uint64  `json:"comments"`
	Created  *string `json:"created"`
}

type apiCompleted struct {
	Success json.RawMessage `json:"success"`
	Message *string         `json:"message"`
}

// MapPost converts a post response into a Post and, when the response carries a
// "next" cursor, the token for the remaining images
func MapPost(body []byte) (*models.Post, *models.ContinuationToken, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, nil, err
	}

	var raw apiPost
	if err := decode(env.Data, &raw, "data"); err != nil {
		return nil, nil, err
	}

	switch {
	case raw.ID == nil || *raw.ID == "":
		return nil, nil, apperrors.Schema("id")
	case raw.Username == nil:
		return nil, nil, apperrors.Schema("username")
	case raw.Privacy == nil:
		return nil, nil, apperrors.Schema("privacy")
	case isAbsent(raw.NSFW):
		return nil, nil, apperrors.Schema("nsfw")
	case raw.ImageCount == nil:
		return nil, nil, apperrors.Schema("image_count")
	case isAbsent(raw.Images):
		return nil, nil, apperrors.Schema("images")
	}

	privacy, err := models.ParsePrivacy(*raw.Privacy)
	if err != nil {
		return nil, nil, &apperrors.MapError{Field: "privacy", Err: err}
	}

	nsfw, err := decodeFlag(raw.NSFW)
	if err != nil {
		return nil, nil, &apperrors.MapError{Field: "nsfw", Err: err}
	}

	created, err := parseTime(raw.Created, "created")
	if err != nil {
		return nil, nil, err
	}

	var files []apiFile
	if err := decode(raw.Images, &files, "images"); err != nil {
		return nil, nil, err
	}
	images, err := mapImages(files)
	if err != nil {
		return nil, nil, err
	}

	post := &models.Post{
		ID:         *raw.ID,
		Title:      deref(raw.Title),
		Username:   *raw.Username,
		Privacy:    privacy,
		NSFW:       nsfw,
		ImageCount: *raw.ImageCount,
		Created:    created,
		DeleteURL:  deref(raw.DeleteURL),
		Images:     images,
		Source:     models.ModeAPI,
	}
	if raw.Views != nil {
		post.Views = *raw.Views
	}

	cursor, err := firstCursor(env, raw)
	if err != nil {
		return nil, nil, err
	}
	if cursor == "" {
		post.FullyLoaded = true
		return post, nil, nil
	}

	return post, &models.ContinuationToken{
		Mode:   models.ModeAPI,
		PostID: post.ID,
		Cursor: cursor,
		Offset: len(images),
	}, nil
}

// MapUser converts a user response
func MapUser(body []byte) (*models.User, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var raw apiUser
	if err := decode(env.Data, &raw, "data"); err != nil {
		return nil, err
	}
	if raw.Name == nil || *raw.Name == "" {
		return nil, apperrors.Schema("name")
	}

	created, err := parseTime(raw.Created, "created")
	if err != nil {
		return nil, err
	}

	return &models.User{
		Name:     *raw.Name,
		Posts:    raw.Posts,
		Comments: raw.Comments,
		Created:  created,
	}, nil
}

// MapFile converts a single file response
func MapFile(body []byte) (*models.File, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var raw apiFile
	if err := decode(env.Data, &raw, "data"); err != nil {
		return nil, err
	}
	return mapFile(raw, "")
}

// MapFiles converts a list of files, as returned by the bulk update
func MapFiles(body []byte) ([]models.File, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var raws []apiFile
	if err := decode(env.Data, &raws, "data"); err != nil {
		return nil, err
	}

	files := make([]models.File, 0, len(raws))
	for i, raw := range raws {
		f, err := mapFile(raw, fmt.Sprintf("data[%d].", i))
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, nil
}

// MapCompleted reads a completion envelope and returns its message.
// A reported failure becomes an APIError carrying the message.
func MapCompleted(status int, body []byte) (string, error) {
	var raw apiCompleted
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", &apperrors.MapError{Field: "body", Err: err}
	}
	if isAbsent(raw.Success) {
		return "", apperrors.Schema("success")
	}

	ok, err := decodeFlag(raw.Success)
	if err != nil {
		return "", &apperrors.MapError{Field: "success", Err: err}
	}

	msg := deref(raw.Message)
	if !ok {
		if msg == "" {
			msg = "operation was not successful"
		}
		return "", &apperrors.APIError{Status: status, Code: status, Message: msg}
	}
	return msg, nil
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &apperrors.MapError{Field: "body", Err: err}
	}
	if isAbsent(env.Data) {
		return nil, apperrors.Schema("data")
	}
	return &env, nil
}

// decode unmarshals raw, reporting type mismatches at their field path
func decode(raw json.RawMessage, v interface{}, path string) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return &apperrors.MapError{Field: path + "." + typeErr.Field, Err: err}
		}
		return &apperrors.MapError{Field: path, Err: err}
	}
	return nil
}

func mapImages(files []apiFile) ([]models.Image, error) {
	images := make([]models.Image, 0, len(files))
	for i, f := range files {
		prefix := fmt.Sprintf("images[%d].", i)
		file, err := mapFile(f, prefix)
		if err != nil {
			return nil, err
		}
		if f.Position == nil {
			return nil, apperrors.Schema(prefix + "position")
		}
		images = append(images, file.Image)
	}
	sort.SliceStable(images, func(a, b int) bool { return images[a].Position < images[b].Position })
	return images, nil
}

func mapFile(f apiFile, prefix string) (*models.File, error) {
	if f.ID == nil || *f.ID == "" {
		return nil, apperrors.Schema(prefix + "id")
	}
	if f.Link == nil || *f.Link == "" {
		return nil, apperrors.Schema(prefix + "link")
	}
	if f.Position != nil && *f.Position < 1 {
		return nil, &apperrors.MapError{Field: prefix + "position", Err: fmt.Errorf("position %d is not positive", *f.Position)}
	}

	created, err := parseTime(f.Created, prefix+"created")
	if err != nil {
		return nil, err
	}

	file := &models.File{
		Image: models.Image{
			ID:           *f.ID,
			Link:         *f.Link,
			Description:  deref(f.Description),
			Created:      created,
			OriginalName: deref(f.OriginalName),
		},
		PostID: deref(f.PostID),
	}
	if f.Position != nil {
		file.Position = *f.Position
	}
	return file, nil
}

// firstCursor looks for the continuation cursor at the envelope, inside data, then under links
func firstCursor(env *envelope, raw apiPost) (string, error) {
	candidates := []struct {
		field string
		value json.RawMessage
	}{
		{"next", env.Next},
		{"data.next", raw.Next},
	}
	if env.Links != nil {
		candidates = append(candidates, struct {
			field string
			value json.RawMessage
		}{"links.next", env.Links.Next})
	}

	for _, c := range candidates {
		cursor, err := decodeCursor(c.value)
		if err != nil {
			return "", &apperrors.MapError{Field: c.field, Err: err}
		}
		if cursor != "" {
			return cursor, nil
		}
	}
	return "", nil
}

func decodeCursor(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("cursor must be a string or number, got %s", string(raw))
}

// decodeFlag accepts true/false, 0/1 and their string forms
func decodeFlag(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return false, fmt.Errorf("expected 0 or 1, got %s", n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseBool(s); err == nil {
			return v, nil
		}
	}
	return false, fmt.Errorf("expected a boolean flag, got %s", string(raw))
}

func parseTime(raw *string, field string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		return nil, &apperrors.MapError{Field: field, Err: err}
	}
	return &t, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
