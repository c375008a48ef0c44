package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"

	"go-shelf-inspector/pkg/models"

	"github.com/disintegration/imaging"
)

const (
	cropPreviewWidth = 200
	annotatedWidth   = 800
	boxStroke        = 3
)

var (
	boxMatched = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	boxUnknown = color.NRGBA{R: 255, G: 200, B: 0, A: 255}
	boxFailed  = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// renderCrops returns a PNG preview of each readable box, at most 200px wide.
func renderCrops(img image.Image, products []models.DetectedProduct) []models.CropPreview {
	bounds := img.Bounds()
	previews := make([]models.CropPreview, 0, len(products))
	for _, p := range products {
		rect := p.BBox.Rect().Add(bounds.Min).Intersect(bounds)
		if !p.BBox.Valid() || rect.Empty() {
			continue
		}
		crop := imaging.Crop(img, rect)
		if crop.Bounds().Dx() > cropPreviewWidth {
			crop = imaging.Resize(crop, cropPreviewWidth, 0, imaging.Lanczos)
		}
		uri, err := dataURI(crop, imaging.PNG)
		if err != nil {
			continue
		}
		previews = append(previews, models.CropPreview{Index: p.Index, DataURI: uri})
	}
	return previews
}

// renderAnnotated draws every box on a copy of img and scales it to at most
// 800px wide. Green boxes were identified, amber ones had no type and red
// ones failed.
func renderAnnotated(img image.Image, products []models.DetectedProduct) (string, error) {
	// Clone rebases to the origin, which is where box coordinates start
	canvas := imaging.Clone(img)
	for _, p := range products {
		c := boxMatched
		switch {
		case p.Failed():
			c = boxFailed
		case p.Info.Type == nil:
			c = boxUnknown
		}
		strokeRect(canvas, p.BBox.Rect(), c)
	}

	var out image.Image = canvas
	if canvas.Bounds().Dx() > annotatedWidth {
		out = imaging.Resize(canvas, annotatedWidth, 0, imaging.Lanczos)
	}
	return dataURI(out, imaging.JPEG)
}

func strokeRect(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := boxStroke
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func dataURI(img image.Image, format imaging.Format) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	mime := "image/png"
	if format == imaging.JPEG {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
