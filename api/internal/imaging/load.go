package imaging

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"quizdoc/api/internal/util"
)

// RawImage is a decoded input frame. It is never modified after Load.
type RawImage struct {
	Path   string
	Format string // "png" | "jpeg"
	Img    image.Image
	Width  int
	Height int
	Hash   string // sha256 of the encoded bytes; empty for in-memory images
}

// Load reads and decodes a PNG or JPEG file.
func Load(path string) (RawImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawImage{}, unreadable(path, err)
	}
	return Decode(path, data)
}

// Decode decodes image bytes; path is only used for error reporting.
func Decode(path string, data []byte) (RawImage, error) {
	if len(data) == 0 {
		return RawImage{}, unreadable(path, errors.New("empty file"))
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return RawImage{}, unreadable(path, err)
	}
	b := img.Bounds()
	return RawImage{
		Path:   path,
		Format: format,
		Img:    img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Hash:   util.SHA256Hex(data),
	}, nil
}

// FromImage wraps an in-memory image, e.g. a previously normalized frame.
func FromImage(path string, img image.Image) RawImage {
	b := img.Bounds()
	return RawImage{Path: path, Format: "memory", Img: img, Width: b.Dx(), Height: b.Dy()}
}
