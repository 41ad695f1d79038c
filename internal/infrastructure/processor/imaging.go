package processor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
)

type ImageProcessor struct {
}

func New() *ImageProcessor {
	return &ImageProcessor{}
}

// Resize renders a derivative. Cropped uses cover fit (center crop to fill
// the exact box); otherwise the image is scaled to fit inside the box
// preserving aspect ratio. The output format follows the original's file
// extension so the derivative keeps the original's type.
func (p *ImageProcessor) Resize(ctx context.Context, data []byte, width, height int, cropped bool, ext string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ImageProcessor - Resize - imaging.Decode: %w", err)
	}

	if cropped {
		img = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	} else {
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	err = imaging.Encode(&buf, img, format)
	if err != nil {
		return nil, fmt.Errorf("ImageProcessor - Resize - imaging.Encode: %w", err)
	}

	return buf.Bytes(), nil
}
