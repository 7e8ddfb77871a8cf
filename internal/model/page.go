package model

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// SourceType tells where a page came from.
type SourceType string

const (
	SourceCamera     SourceType = "camera"
	SourceFileUpload SourceType = "file_upload"
)

// ImageHandle is an opaque reference to the binary data of a page.
type ImageHandle interface {
	Open() (io.ReadCloser, error)
	Size() int64
	// Release frees the underlying resource. Calling it twice is safe.
	Release() error
}

// CapturedPage is one page of the document. ID never changes once the page
// has been created and is the only key used for removal.
type CapturedPage struct {
	ID         string      `json:"id"`
	Image      ImageHandle `json:"-"`
	SourceType SourceType  `json:"sourceType"`
	MimeType   string      `json:"mimeType"`
	CapturedAt time.Time   `json:"capturedAt"`
}

// Extension returns the file extension matching the page MIME type.
func (p CapturedPage) Extension() string {
	switch p.MimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

// ReadAll returns the page bytes.
func (p CapturedPage) ReadAll() ([]byte, error) {
	if p.Image == nil {
		return nil, fmt.Errorf("page %s has no image", p.ID)
	}
	rc, err := p.Image.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// MemoryImage keeps encoded image bytes in memory.
type MemoryImage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryImage wraps already encoded bytes.
func NewMemoryImage(data []byte) *MemoryImage {
	return &MemoryImage{data: data}
}

func (m *MemoryImage) Open() (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, fmt.Errorf("image already released")
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *MemoryImage) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data))
}

func (m *MemoryImage) Release() error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// FileImage references a file selected by the user. Owned files (uploads
// spooled by the service) are deleted on release; user files are left alone.
type FileImage struct {
	mu       sync.Mutex
	path     string
	size     int64
	owned    bool
	released bool
}

// NewFileImage references the file at path.
func NewFileImage(path string, size int64, owned bool) *FileImage {
	return &FileImage{path: path, size: size, owned: owned}
}

// Path returns the referenced file path.
func (f *FileImage) Path() string {
	return f.path
}

func (f *FileImage) Open() (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return nil, fmt.Errorf("image already released")
	}
	return os.Open(f.path)
}

func (f *FileImage) Size() int64 {
	return f.size
}

func (f *FileImage) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return nil
	}
	f.released = true
	if !f.owned {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
