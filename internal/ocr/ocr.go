// Package ocr defines the text recognition boundary used by the extractor.
// The Tesseract binding lives in the tesseract subpackage so that callers
// depending only on Engine do not need cgo.
package ocr

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Engine recognises text in an image region.
type Engine interface {
	Text(ctx context.Context, img image.Image) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image) (string, error)

func (f EngineFunc) Text(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// EncodePNG encodes img into a pooled buffer. The caller must call release
// once the bytes are no longer referenced.
func EncodePNG(img image.Image) (data []byte, release func(), err error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	release = func() {
		buf.Reset()
		bufferPool.Put(buf)
	}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		release()
		return nil, func() {}, err
	}
	return buf.Bytes(), release, nil
}
