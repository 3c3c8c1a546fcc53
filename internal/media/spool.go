package media

import (
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif"}

// Spool copies r into a temp file under dir, rejecting anything larger than maxBytes or
// anything that does not sniff as a supported image. The caller owns the returned file and
// must Remove it.
func Spool(r io.Reader, filename, dir string, maxBytes int64) (*File, error) {
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	file := &File{Path: tmp.Name(), Filename: filename}

	n, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = file.Remove()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	switch {
	case n == 0:
		_ = file.Remove()
		return nil, ErrEmptyFile
	case n > maxBytes:
		_ = file.Remove()
		return nil, ErrTooLarge
	}
	file.Size = n

	contentType, err := Inspect(file.Path)
	if err != nil {
		_ = file.Remove()
		return nil, err
	}
	file.ContentType = contentType

	return file, nil
}

// Inspect sniffs the file content and returns its MIME type if it is an accepted image.
func Inspect(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}

	for _, allowed := range allowedTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}
