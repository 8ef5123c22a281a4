package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imgchest/pkg/models"
)

// FileName is the sidecar written into each post directory
const FileName = "post.json"

// PostMetadata is the sidecar describing a downloaded post
type PostMetadata struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Username   string     `json:"username"`
	Privacy    string     `json:"privacy,omitempty"`
	NSFW       bool       `json:"nsfw"`
	Views      uint64     `json:"views"`
	ImageCount int        `json:"image_count"`
	Created    *time.Time `json:"created,omitempty"`
	Source     string     `json:"source"`
	URL        string     `json:"url,omitempty"`

	DownloadedAt time.Time      `json:"downloaded_at"`
	Files        []FileMetadata `json:"files"`
}

// FileMetadata describes one downloaded image
type FileMetadata struct {
	ID          string `json:"id"`
	Position    int    `json:"position"`
	Link        string `json:"link"`
	VideoLink   string `json:"video_link,omitempty"`
	Description string `json:"description,omitempty"`
	FileName    string `json:"file_name"`
	Size        int64  `json:"size,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// FromPost builds the sidecar for post. fileName maps an image to its name on disk.
func FromPost(post *models.Post, pageURL string, fileName func(models.Image) string) *PostMetadata {
	meta := &PostMetadata{
		ID:           post.ID,
		Title:        post.Title,
		Username:     post.Username,
		Privacy:      string(post.Privacy),
		NSFW:         post.NSFW,
		Views:        post.Views,
		ImageCount:   post.ImageCount,
		Created:      post.Created,
		Source:       post.Source.String(),
		URL:          pageURL,
		DownloadedAt: time.Now().UTC(),
		Files:        make([]FileMetadata, 0, len(post.Images)),
	}

	for _, img := range post.Images {
		meta.Files = append(meta.Files, FileMetadata{
			ID:          img.ID,
			Position:    img.Position,
			Link:        img.Link,
			VideoLink:   img.VideoLink,
			Description: img.Description,
			FileName:    fileName(img),
		})
	}
	return meta
}

// Record notes the outcome of downloading the file with id
func (m *PostMetadata) Record(id string, size int64, skipped bool) {
	for i := range m.Files {
		if m.Files[i].ID == id {
			m.Files[i].Size = size
			m.Files[i].Skipped = skipped
			return
		}
	}
}

// Marshal returns the indented JSON form
func (m *PostMetadata) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// Load reads the sidecar from a post directory
func Load(dir string) (*PostMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta PostMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Exists reports whether a post directory already has a sidecar
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}
