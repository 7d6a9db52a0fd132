// Package ocr turns a normalized frame into a plain-text transcript.
// Engines (tesseract, yandex) produce positioned fragments; the Extractor
// applies the confidence floor and reading order.
package ocr

import (
	"context"
	"image"
)

// Fragment is one recognised piece of text with its position on the frame.
type Fragment struct {
	Text       string
	Confidence float64 // 0..1
	Region     image.Rectangle
}

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img *image.Gray) ([]Fragment, error)
}
