package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
)

// ErrUploadConsumed is returned when an UploadFile is read a second time
var ErrUploadConsumed = errors.New("upload file already consumed")

const defaultContentType = "application/octet-stream"

// UploadFile is a binary payload destined for a create or append request.
// It can be consumed exactly once; the transport takes ownership for one request.
type UploadFile struct {
	FileName    string
	ContentType string

	mu       sync.Mutex
	body     io.Reader
	consumed bool
}

// NewUploadFile wraps a reader. If the reader is an io.Closer it is closed after upload.
func NewUploadFile(fileName string, r io.Reader) *UploadFile {
	return &UploadFile{
		FileName:    fileName,
		ContentType: InferContentType(fileName),
		body:        r,
	}
}

// UploadFileFromBytes creates an upload from an in-memory payload
func UploadFileFromBytes(fileName string, data []byte) *UploadFile {
	return NewUploadFile(fileName, bytes.NewReader(data))
}

// UploadFileFromPath opens a file for streamed upload
func UploadFileFromPath(path string) (*UploadFile, error) {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("missing file name in %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	return NewUploadFile(name, f), nil
}

// Take hands the payload to the caller and marks the upload as consumed
func (u *UploadFile) Take() (io.Reader, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.consumed || u.body == nil {
		return nil, ErrUploadConsumed
	}
	u.consumed = true
	body := u.body
	u.body = nil
	return body, nil
}

// Consumed reports whether the payload has been handed off
func (u *UploadFile) Consumed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.consumed
}

// Close releases the payload if it was never sent
func (u *UploadFile) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.consumed = true
	if c, ok := u.body.(io.Closer); ok {
		u.body = nil
		return c.Close()
	}
	u.body = nil
	return nil
}

// InferContentType guesses a MIME type from the file extension
func InferContentType(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return defaultContentType
}
