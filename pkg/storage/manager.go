package storage

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"imgchest/pkg/models"
)

// Manager lays out downloaded posts as <output>/<post id>/<file name>
// and writes every file atomically
type Manager struct {
	outputDir string
	overwrite bool

	mu    sync.Mutex
	saved int
}

// NewManager creates outputDir if needed
func NewManager(outputDir string, overwrite bool) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir, overwrite: overwrite}, nil
}

// OutputDir returns the root directory
func (m *Manager) OutputDir() string { return m.outputDir }

// PostDir returns the directory of a post, creating it
func (m *Manager) PostDir(postID string) (string, error) {
	name := sanitize(postID)
	if name == "" {
		return "", fmt.Errorf("invalid post id %q", postID)
	}
	dir := filepath.Join(m.outputDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create post directory: %w", err)
	}
	return dir, nil
}

// FileName picks the on-disk name of an image: the last segment of its link,
// or its id when the link has none
func FileName(img models.Image) string {
	link := img.Link
	if img.VideoLink != "" {
		link = img.VideoLink
	}

	if u, err := url.Parse(link); err == nil {
		if base := sanitize(path.Base(u.Path)); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return sanitize(img.ID)
}

// Path returns where an image of postID is stored
func (m *Manager) Path(postID string, img models.Image) string {
	return filepath.Join(m.outputDir, sanitize(postID), FileName(img))
}

// ShouldSkip reports whether the image is already on disk and overwriting is off
func (m *Manager) ShouldSkip(postID string, img models.Image) bool {
	if m.overwrite {
		return false
	}
	info, err := os.Stat(m.Path(postID, img))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Save writes an image through write into a temporary file and renames it into place.
// A failed write leaves no partial file behind.
func (m *Manager) Save(postID string, img models.Image, write func(w io.Writer) (int64, error)) (int64, error) {
	dir, err := m.PostDir(postID)
	if err != nil {
		return 0, err
	}
	n, err := writeAtomic(filepath.Join(dir, FileName(img)), write)
	if err != nil {
		return n, err
	}

	m.mu.Lock()
	m.saved++
	m.mu.Unlock()
	return n, nil
}

// WriteFile atomically stores data as name inside the post directory
func (m *Manager) WriteFile(postID, name string, data []byte) (string, error) {
	dir, err := m.PostDir(postID)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, sanitize(name))
	_, err = writeAtomic(target, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return target, err
}

// SavedCount returns the number of images written by this manager
func (m *Manager) SavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

func writeAtomic(target string, write func(w io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := write(tmp)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// sanitize keeps a name within one path segment
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
