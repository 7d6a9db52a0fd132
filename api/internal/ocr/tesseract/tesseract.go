//go:build ocr

// Package tesseract recognises words on a frame with a local Tesseract
// installation (gosseract). Build with -tags ocr; Tesseract and the
// language data must be installed:
//
//	apt-get install tesseract-ocr tesseract-ocr-spa
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"quizdoc/api/internal/ocr"
)

type Engine struct {
	langs     []string
	newClient func() *gosseract.Client
}

func New(langs []string) (*Engine, error) {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Engine{langs: langs, newClient: gosseract.NewClient}, nil
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img *image.Gray) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	c := e.newClient()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.langs...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	out := make([]ocr.Fragment, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, ocr.Fragment{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Region:     b.Box,
		})
	}
	return out, nil
}
