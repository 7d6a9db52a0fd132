//go:build !ocr

// Package tesseract is the stub used when the "ocr" build tag is not set.
// Rebuild with -tags ocr to enable the Tesseract engine.
package tesseract

import (
	"context"
	"errors"
	"image"

	"quizdoc/api/internal/ocr"
)

// ErrOCRNotEnabled is returned when Tesseract support was not compiled in.
var ErrOCRNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr or use --engine yandex (OCR_ENGINE=yandex)")

type Engine struct{}

func New(langs []string) (*Engine, error) {
	return nil, ErrOCRNotEnabled
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img *image.Gray) ([]ocr.Fragment, error) {
	return nil, ErrOCRNotEnabled
}
