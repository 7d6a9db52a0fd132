// Package imaging prepares a photographed question for text recognition:
// intensity conversion, background polarity, adaptive binarisation and
// speckle removal.
package imaging

import (
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// MinDimension is the smallest width/height the recognizer can work with.
const MinDimension = 32

// DefaultMaxPixels bounds the working frame after resizing.
const DefaultMaxPixels = 18_000_000

type Options struct {
	// ResizeWidth upscales narrower frames to this width. 0 disables it.
	ResizeWidth int
	// MaxPixels caps width*height of the working frame; larger frames are
	// scaled down and upscaling stops at the cap. 0 means DefaultMaxPixels.
	MaxPixels int
	// DarkThreshold: a border mean below it means light text on dark background.
	DarkThreshold uint8
	// Window is the side of the adaptive threshold neighbourhood (odd).
	Window int
	// Offset is subtracted from the local mean before comparison.
	Offset int
	// DebugDir, when set, receives a PNG of every normalized frame.
	DebugDir string
}

func DefaultOptions() Options {
	return Options{
		ResizeWidth:   1600,
		MaxPixels:     DefaultMaxPixels,
		DarkThreshold: 100,
		Window:        15,
		Offset:        8,
	}
}

type Normalizer struct {
	opts Options
	log  logrus.FieldLogger
}

func NewNormalizer(opts Options, log logrus.FieldLogger) *Normalizer {
	if opts.Window < 3 {
		opts.Window = 3
	}
	if opts.Window%2 == 0 {
		opts.Window++
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{opts: opts, log: log}
}

// Normalize returns a binary frame with dark text on a light background.
// The input is not modified.
func (n *Normalizer) Normalize(raw RawImage) (*image.Gray, error) {
	if raw.Img == nil {
		return nil, unreadable(raw.Path, nil)
	}
	if raw.Width < MinDimension || raw.Height < MinDimension {
		return nil, tooSmall(raw.Path, raw.Width, raw.Height)
	}

	gray := toGray(raw.Img)
	if w, h := workingSize(raw.Width, raw.Height, n.opts.ResizeWidth, n.opts.MaxPixels); w != raw.Width || h != raw.Height {
		gray = resize(gray, w, h)
	}

	inverted := false
	if IsDarkBackground(gray, n.opts.DarkThreshold) {
		invert(gray)
		inverted = true
	}

	bin := adaptiveThreshold(gray, n.opts.Window, n.opts.Offset)
	despeckle(bin)

	b := bin.Bounds()
	n.log.WithFields(logrus.Fields{
		"file":     raw.Path,
		"width":    b.Dx(),
		"height":   b.Dy(),
		"inverted": inverted,
	}).Debug("image normalized")

	if n.opts.DebugDir != "" {
		n.saveDebug(raw.Path, bin)
	}
	return bin, nil
}

// IsDarkBackground samples a border band and compares its mean with threshold.
func IsDarkBackground(g *image.Gray, threshold uint8) bool {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return false
	}
	band := min(w, h) * 5 / 100
	if band < 1 {
		band = 1
	}

	var sum, cnt int64
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		if y < band || y >= h-band {
			for _, p := range row {
				sum += int64(p)
			}
			cnt += int64(w)
			continue
		}
		for x := 0; x < band && x < w; x++ {
			sum += int64(row[x]) + int64(row[w-1-x])
			cnt += 2
		}
	}
	return sum < int64(threshold)*cnt
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) && g.Stride == g.Bounds().Dx() {
		out := image.NewGray(g.Bounds())
		copy(out.Pix, g.Pix)
		return out
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// workingSize keeps the aspect ratio: narrow frames grow to resizeWidth,
// and the result never exceeds maxPixels.
func workingSize(w, h, resizeWidth, maxPixels int) (int, int) {
	area := float64(w) * float64(h)
	if area > float64(maxPixels) {
		scale := math.Sqrt(float64(maxPixels) / area)
		return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	}
	if resizeWidth <= 0 || w >= resizeWidth {
		return w, h
	}
	scale := float64(resizeWidth) / float64(w)
	if area*scale*scale > float64(maxPixels) {
		scale = math.Sqrt(float64(maxPixels) / area)
		return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	}
	return resizeWidth, max(1, int(float64(h)*scale+0.5))
}

func resize(g *image.Gray, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), g, g.Bounds(), xdraw.Src, nil)
	return dst
}

func invert(g *image.Gray) {
	for i, p := range g.Pix {
		g.Pix[i] = 255 - p
	}
}

func (n *Normalizer) saveDebug(srcPath string, g *image.Gray) {
	name := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	if name == "" || name == "." {
		name = "frame"
	}
	log := n.log.WithField("debug_dir", n.opts.DebugDir)
	if err := os.MkdirAll(n.opts.DebugDir, 0o755); err != nil {
		log.WithError(err).Warn("debug image not saved")
		return
	}
	f, err := os.Create(filepath.Join(n.opts.DebugDir, name+"-normalized.png"))
	if err != nil {
		log.WithError(err).Warn("debug image not saved")
		return
	}
	defer f.Close()
	if err := png.Encode(f, g); err != nil {
		log.WithError(err).Warn("debug image not saved")
	}
}
