package apimap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
)

const donkeyKong = `{
  "data": {
    "id": "3qe4gdvj4j2",
    "title": "Donkey Kong - Video Game From The Mid 80's",
    "username": "LunarLandr",
    "privacy": "public",
    "report_status": 1,
    "views": 198,
    "nsfw": 0,
    "image_count": 2,
    "created": "2019-11-03T00:36:00.000000Z",
    "images": [
      {"id": "kwye3cpag4b", "description": "", "link": "https://cdn.imgchest.com/files/kwye3cpag4b.png", "position": 2, "created": "2019-11-03T00:36:00.000000Z", "original_name": null},
      {"id": "nw7w6cmlvye", "description": "**Description**", "link": "https://cdn.imgchest.com/files/nw7w6cmlvye.png", "position": 1, "created": "2019-11-03T00:36:00.000000Z"}
    ],
    "extra_field": {"ignored": true}
  }
}`

func TestMapPostComplete(t *testing.T) {
	post, token, err := MapPost([]byte(donkeyKong))
	require.NoError(t, err)
	assert.Nil(t, token)

	assert.Equal(t, "3qe4gdvj4j2", post.ID)
	assert.Equal(t, "LunarLandr", post.Username)
	assert.Equal(t, models.PrivacyPublic, post.Privacy)
	assert.False(t, post.NSFW)
	assert.Equal(t, uint64(198), post.Views)
	assert.Equal(t, 2, post.ImageCount)
	assert.True(t, post.FullyLoaded)
	assert.Equal(t, models.ModeAPI, post.Source)
	require.NotNil(t, post.Created)
	assert.Equal(t, time.Date(2019, 11, 3, 0, 36, 0, 0, time.UTC), post.Created.UTC())

	require.Len(t, post.Images, 2)
	assert.Equal(t, "nw7w6cmlvye", post.Images[0].ID)
	assert.Equal(t, 1, post.Images[0].Position)
	assert.Equal(t, 2, post.Images[1].Position)
	assert.Empty(t, post.Images[1].OriginalName)
}

func TestMapPostCursor(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope next", `{"data":{"id":"p","username":"u","privacy":"hidden","nsfw":true,"image_count":5,"images":[{"id":"a","link":"l","position":1}]},"next":"c2"}`, "c2"},
		{"data next", `{"data":{"id":"p","username":"u","privacy":"hidden","nsfw":1,"image_count":5,"images":[{"id":"a","link":"l","position":1}],"next":"c3"}}`, "c3"},
		{"links next", `{"data":{"id":"p","username":"u","privacy":"secret","nsfw":"1","image_count":5,"images":[{"id":"a","link":"l","position":1}]},"links":{"next":"https://api.imgchest.com/v1/post/p?page=2"}}`, "https://api.imgchest.com/v1/post/p?page=2"},
		{"numeric next", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":5,"images":[{"id":"a","link":"l","position":1}]},"next":2}`, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, token, err := MapPost([]byte(tt.body))
			require.NoError(t, err)
			assert.False(t, post.FullyLoaded)
			require.NotNil(t, token)
			assert.Equal(t, models.ModeAPI, token.Mode)
			assert.Equal(t, "p", token.PostID)
			assert.Equal(t, tt.want, token.Cursor)
			assert.Equal(t, 1, token.Offset)
		})
	}
}

func TestMapPostNullNextIsComplete(t *testing.T) {
	post, token, err := MapPost([]byte(`{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":0,"images":[]},"next":null}`))
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.True(t, post.FullyLoaded)
	assert.Empty(t, post.Images)
}

func TestMapPostSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no data", `{"message":"ok"}`, "data"},
		{"null data", `{"data":null}`, "data"},
		{"no id", `{"data":{"username":"u","privacy":"public","nsfw":0,"image_count":0,"images":[]}}`, "id"},
		{"no username", `{"data":{"id":"p","privacy":"public","nsfw":0,"image_count":0,"images":[]}}`, "username"},
		{"no privacy", `{"data":{"id":"p","username":"u","nsfw":0,"image_count":0,"images":[]}}`, "privacy"},
		{"no nsfw", `{"data":{"id":"p","username":"u","privacy":"public","image_count":0,"images":[]}}`, "nsfw"},
		{"no image count", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"images":[]}}`, "image_count"},
		{"no images", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":0}}`, "images"},
		{"image without link", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":1,"images":[{"id":"a","position":1}]}}`, "images[0].link"},
		{"image without position", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":1,"images":[{"id":"a","link":"l"}]}}`, "images[0].position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := MapPost([]byte(tt.body))
			var mapErr *apperrors.MapError
			require.ErrorAs(t, err, &mapErr)
			assert.Equal(t, tt.field, mapErr.Field)
			assert.Equal(t, apperrors.KindMap, apperrors.KindOf(err))
		})
	}
}

func TestMapPostInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `<html>`, "body"},
		{"bad privacy", `{"data":{"id":"p","username":"u","privacy":"friends","nsfw":0,"image_count":0,"images":[]}}`, "privacy"},
		{"nsfw out of range", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":2,"image_count":0,"images":[]}}`, "nsfw"},
		{"bad created", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":0,"images":[],"created":"yesterday"}}`, "created"},
		{"zero position", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":1,"images":[{"id":"a","link":"l","position":0}]}}`, "images[0].position"},
		{"bad cursor", `{"data":{"id":"p","username":"u","privacy":"public","nsfw":0,"image_count":0,"images":[]},"next":{"x":1}}`, "next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := MapPost([]byte(tt.body))
			var mapErr *apperrors.MapError
			require.ErrorAs(t, err, &mapErr)
			assert.Equal(t, tt.field, mapErr.Field)
			assert.Error(t, mapErr.Err)
		})
	}
}

func TestMapPostWrongType(t *testing.T) {
	_, _, err := MapPost([]byte(`{"data":{"id":7,"username":"u","privacy":"public","nsfw":0,"image_count":0,"images":[]}}`))
	var mapErr *apperrors.MapError
	require.ErrorAs(t, err, &mapErr)
	assert.Contains(t, mapErr.Field, "id")
}

func TestMapUser(t *testing.T) {
	user, err := MapUser([]byte(`{"data":{"name":"LunarLandr","posts":12,"comments":3,"created":"2019-09-25T01:00:45.000000Z"}}`))
	require.NoError(t, err)
	assert.Equal(t, "LunarLandr", user.Name)
	assert.Equal(t, uint64(12), user.Posts)
	require.NotNil(t, user.Created)
	assert.Equal(t, 2019, user.Created.Year())

	_, err = MapUser([]byte(`{"data":{"posts":1}}`))
	assert.ErrorIs(t, err, apperrors.Schema("name"))
}

func TestMapFiles(t *testing.T) {
	file, err := MapFile([]byte(`{"data":{"id":"f1","link":"https://cdn/f1.png","position":3,"description":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "f1", file.ID)
	assert.Equal(t, 3, file.Position)
	assert.Equal(t, "hi", file.Description)

	files, err := MapFiles([]byte(`{"data":[{"id":"a","link":"l1"},{"id":"b","link":"l2","description":"two"}]}`))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "two", files[1].Description)

	_, err = MapFiles([]byte(`{"data":[{"id":"a"}]}`))
	var mapErr *apperrors.MapError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "data[0].link", mapErr.Field)
}

func TestMapCompleted(t *testing.T) {
	msg, err := MapCompleted(200, []byte(`{"success":"true","message":"Favorite added."}`))
	require.NoError(t, err)
	assert.Equal(t, "Favorite added.", msg)

	msg, err = MapCompleted(200, []byte(`{"success":true}`))
	require.NoError(t, err)
	assert.Empty(t, msg)

	_, err = MapCompleted(200, []byte(`{"success":"false","message":"Post not found."}`))
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Post not found.", apiErr.Message)

	_, err = MapCompleted(200, []byte(`{"message":"?"}`))
	assert.ErrorIs(t, err, apperrors.Schema("success"))
}
