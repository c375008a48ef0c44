// Package preprocess prepares product crops for OCR.
package preprocess

import (
	"image"
	"image/draw"

	apperrors "go-shelf-inspector/internal/errors"

	"github.com/disintegration/imaging"
)

// DefaultDenoiseSigma is the gaussian sigma used to suppress sensor noise.
const DefaultDenoiseSigma = 0.8

// Preprocessor converts images to denoised single-channel images.
type Preprocessor struct {
	sigma float64
}

// New returns a Preprocessor. A sigma of zero disables denoising.
func New(sigma float64) *Preprocessor {
	if sigma < 0 {
		sigma = 0
	}
	return &Preprocessor{sigma: sigma}
}

// Default returns a Preprocessor using DefaultDenoiseSigma.
func Default() *Preprocessor {
	return New(DefaultDenoiseSigma)
}

// Preprocess returns a grayscale, denoised copy of img. The input is not modified.
func (p *Preprocessor) Preprocess(img image.Image) *image.Gray {
	out := imaging.Grayscale(img)
	if p.sigma > 0 {
		out = imaging.Blur(out, p.sigma)
	}
	return ToGray(out)
}

// PreprocessFile loads the image at path and preprocesses it.
func (p *Preprocessor) PreprocessFile(path string) (*image.Gray, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return p.Preprocess(img), nil
}

// Load decodes the image at path, applying EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(path, err)
	}
	return img, nil
}

// ToGray converts img to *image.Gray with bounds starting at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
