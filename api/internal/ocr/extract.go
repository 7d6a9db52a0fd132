package ocr

import (
	"context"
	"errors"
	"image"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const DefaultMinConfidence = 0.30

type Extractor struct {
	rec     Recognizer
	minConf float64
	log     logrus.FieldLogger
}

func NewExtractor(rec Recognizer, minConfidence float64, log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{rec: rec, minConf: minConfidence, log: log}
}

// Extract recognises img and reduces the fragments to a transcript.
// A transcript with no visible characters is reported as ErrNoText.
func (x *Extractor) Extract(ctx context.Context, img *image.Gray) (string, error) {
	frags, err := x.rec.Recognize(ctx, img)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &Error{Reason: EngineFailed, Engine: x.rec.Name(), Err: err}
	}

	text := Reduce(frags, x.minConf)
	x.log.WithFields(logrus.Fields{
		"engine":    x.rec.Name(),
		"fragments": len(frags),
		"chars":     len(text),
	}).Debug("text extracted")

	if text == "" {
		return "", &Error{Reason: NoText, Engine: x.rec.Name()}
	}
	return text, nil
}

type line struct {
	frags   []Fragment
	centreY float64
	height  int
}

// Reduce drops blank and low-confidence fragments, groups the rest into
// lines by vertical centre and joins them in reading order: words by one
// space, lines by one newline.
func Reduce(frags []Fragment, minConfidence float64) string {
	kept := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		f.Text = strings.Join(strings.Fields(f.Text), " ")
		if f.Text == "" || f.Confidence < minConfidence {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return ""
	}

	sort.SliceStable(kept, func(i, j int) bool { return centreY(kept[i]) < centreY(kept[j]) })

	var lines []*line
	for _, f := range kept {
		cy := centreY(f)
		if n := len(lines); n > 0 {
			cur := lines[n-1]
			tol := float64(max(cur.height, f.Region.Dy())) / 2
			if abs(cy-cur.centreY) <= tol {
				cur.centreY = (cur.centreY*float64(len(cur.frags)) + cy) / float64(len(cur.frags)+1)
				cur.frags = append(cur.frags, f)
				cur.height = max(cur.height, f.Region.Dy())
				continue
			}
		}
		lines = append(lines, &line{frags: []Fragment{f}, centreY: cy, height: f.Region.Dy()})
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		sort.SliceStable(l.frags, func(i, j int) bool { return l.frags[i].Region.Min.X < l.frags[j].Region.Min.X })
		words := make([]string, len(l.frags))
		for i, f := range l.frags {
			words[i] = f.Text
		}
		out = append(out, strings.Join(words, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func centreY(f Fragment) float64 {
	return float64(f.Region.Min.Y+f.Region.Max.Y) / 2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
