package service

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"

	"github.com/fleveque/restaurant-images/internal/storage"
)

// MaxThumbnailWidth caps the w parameter of the image proxy.
const MaxThumbnailWidth = 1600

// ErrUnsupportedImage is returned for bytes libvips cannot identify.
var ErrUnsupportedImage = errors.New("unsupported image format")

// ImageProcessor resizes proxied images into JPEG thumbnails and keeps them
// on disk. It uses bimg, which requires libvips as a system dependency.
type ImageProcessor struct {
	fs *storage.FileSystem
}

// NewImageProcessor creates a new ImageProcessor.
func NewImageProcessor(fs *storage.FileSystem) *ImageProcessor {
	return &ImageProcessor{fs: fs}
}

// Cached returns previously stored bytes for sourceURL at width.
func (p *ImageProcessor) Cached(sourceURL string, width int) ([]byte, bool) {
	data, err := p.fs.Read(sourceURL, clampWidth(width))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Process validates upstream bytes, resizes them when width > 0 and stores
// the result. Width 0 stores the original bytes untouched.
func (p *ImageProcessor) Process(sourceURL string, data []byte, width int) ([]byte, error) {
	if bimg.DetermineImageType(data) == bimg.UNKNOWN {
		return nil, ErrUnsupportedImage
	}

	width = clampWidth(width)
	out := data
	if width > 0 {
		resized, err := resizeToWidth(data, width)
		if err != nil {
			return nil, err
		}
		out = resized
	}

	if err := p.fs.Write(sourceURL, width, out); err != nil {
		return nil, fmt.Errorf("storing processed image: %w", err)
	}
	return out, nil
}

// resizeToWidth scales to the given width keeping aspect ratio, flattening
// any alpha channel onto white since JPEG has none. Smaller sources are
// never enlarged.
func resizeToWidth(imageData []byte, width int) ([]byte, error) {
	img := bimg.NewImage(imageData)

	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("reading image size: %w", err)
	}
	if size.Width < width {
		width = size.Width
	}

	resized, err := img.Process(bimg.Options{
		Width:          width,
		Type:           bimg.JPEG,
		Quality:        82,
		Background:     bimg.Color{R: 255, G: 255, B: 255},
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("resizing to %dpx: %w", width, err)
	}
	return resized, nil
}

// ContentType returns the MIME type of stored image bytes.
func ContentType(data []byte) string {
	switch name := bimg.DetermineImageTypeName(data); name {
	case "unknown", "":
		return "application/octet-stream"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/" + name
	}
}

func clampWidth(width int) int {
	switch {
	case width < 0:
		return 0
	case width > MaxThumbnailWidth:
		return MaxThumbnailWidth
	default:
		return width
	}
}
