package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrUnknownObject   = errors.New("url does not belong to this store")
)

// File is an upload spooled to local disk, waiting to be handed to a Store.
type File struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Ext returns the extension implied by the sniffed content type. The client's filename is
// only consulted when the type is unknown.
func (f *File) Ext() string {
	if ext := extensionFor(f.ContentType); ext != "" {
		return ext
	}
	return strings.ToLower(filepath.Ext(f.Filename))
}

// Remove deletes the spooled file. Removing an already removed file is not an error.
func (f *File) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Store persists media and returns a public URL for it.
type Store interface {
	Upload(ctx context.Context, file *File) (string, error)
	Delete(ctx context.Context, url string) error
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

func objectName(url, baseURL string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrUnknownObject
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" {
		return "", ErrUnknownObject
	}
	return name, nil
}
