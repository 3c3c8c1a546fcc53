package media

import (
	"context"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// ImageNormalizer rewrites spooled images in place: EXIF orientation is applied and the
// image is scaled down to fit within the configured bounds.
type ImageNormalizer struct {
	MaxWidth  int
	MaxHeight int
}

func NewImageNormalizer(maxWidth, maxHeight int) *ImageNormalizer {
	return &ImageNormalizer{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

func (n *ImageNormalizer) Normalize(file *File) error {
	format, err := formatFor(file.ContentType)
	if err != nil {
		return err
	}

	img, err := imaging.Open(file.Path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	if n.MaxWidth > 0 && n.MaxHeight > 0 {
		img = imaging.Fit(img, n.MaxWidth, n.MaxHeight, imaging.Lanczos)
	}

	out, err := os.Create(file.Path)
	if err != nil {
		return fmt.Errorf("failed to reopen image: %w", err)
	}
	defer out.Close()

	if err := imaging.Encode(out, img, format, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}
	file.Size = info.Size()
	return nil
}

func formatFor(contentType string) (imaging.Format, error) {
	switch contentType {
	case "image/jpeg":
		return imaging.JPEG, nil
	case "image/png":
		return imaging.PNG, nil
	case "image/gif":
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

type normalizingStore struct {
	next       Store
	normalizer *ImageNormalizer
}

// WithNormalizer returns a Store that normalizes every image before handing it to next.
func WithNormalizer(next Store, normalizer *ImageNormalizer) Store {
	return &normalizingStore{next: next, normalizer: normalizer}
}

func (s *normalizingStore) Upload(ctx context.Context, file *File) (string, error) {
	if err := s.normalizer.Normalize(file); err != nil {
		return "", err
	}
	return s.next.Upload(ctx, file)
}

func (s *normalizingStore) Delete(ctx context.Context, url string) error {
	return s.next.Delete(ctx, url)
}
