// Package yandex recognises text through Yandex Vision OCR (recognizeText).
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quizdoc/api/internal/ocr"
	"quizdoc/api/internal/util"
)

const DefaultOCRURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

type Options struct {
	OAuthToken string
	FolderID   string
	Languages  []string // ["es","en"]; Tesseract codes are mapped
	Model      string   // "page" by default
	IAMURL     string
	OCRURL     string
}

type Engine struct {
	iamc  *IamClient
	opts  Options
	httpc *http.Client
}

func New(opts Options) *Engine {
	if opts.OCRURL == "" {
		opts.OCRURL = DefaultOCRURL
	}
	if opts.Model == "" {
		opts.Model = "page"
	}
	return &Engine{
		iamc:  NewIamClient(opts.OAuthToken, opts.IAMURL),
		opts:  opts,
		httpc: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`
	LanguageCodes []string `json:"languageCodes,omitempty"`
	Model         string   `json:"model,omitempty"`
}

type vertex struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type textLine struct {
	BoundingBox struct {
		Vertices []vertex `json:"vertices"`
	} `json:"boundingBox"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *struct {
			FullText string `json:"fullText,omitempty"`
			Blocks   []struct {
				Lines []textLine `json:"lines,omitempty"`
			} `json:"blocks,omitempty"`
		} `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (e *Engine) Recognize(ctx context.Context, img *image.Gray) ([]ocr.Fragment, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	data := buf.Bytes()
	payload, err := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(data),
		MimeType:      util.SniffMimeForOCR(data),
		LanguageCodes: languageCodes(e.opts.Languages),
		Model:         e.opts.Model,
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh token
		resp.Body.Close()
		e.iamc.Invalidate()
		if resp, err = e.post(ctx, payload); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, util.Truncate(string(x), 300))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("yandex ocr: bad JSON: %w", err)
	}
	return fragments(&out), nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (*http.Response, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.OCRURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", e.opts.FolderID)
	return e.httpc.Do(req)
}

func fragments(r *response) []ocr.Fragment {
	if r == nil || r.Result == nil || r.Result.TextAnnotation == nil {
		return nil
	}
	ta := r.Result.TextAnnotation
	var out []ocr.Fragment
	idx := 0
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			conf := 1.0
			if l.Confidence != nil {
				conf = *l.Confidence
			}
			region, ok := bounds(l.BoundingBox.Vertices)
			if !ok {
				// keep service order when geometry is missing
				region = image.Rect(0, idx*1000, 1, idx*1000+1)
			}
			out = append(out, ocr.Fragment{Text: l.Text, Confidence: conf, Region: region})
			idx++
		}
	}
	if len(out) == 0 && strings.TrimSpace(ta.FullText) != "" {
		for i, l := range strings.Split(ta.FullText, "\n") {
			out = append(out, ocr.Fragment{Text: l, Confidence: 1, Region: image.Rect(0, i*1000, 1, i*1000+1)})
		}
	}
	return out
}

func bounds(vs []vertex) (image.Rectangle, bool) {
	if len(vs) == 0 {
		return image.Rectangle{}, false
	}
	var r image.Rectangle
	for i, v := range vs {
		x, errX := strconv.Atoi(v.X)
		y, errY := strconv.Atoi(v.Y)
		if errX != nil || errY != nil {
			return image.Rectangle{}, false
		}
		if i == 0 {
			r = image.Rect(x, y, x, y)
			continue
		}
		r.Min.X, r.Min.Y = min(r.Min.X, x), min(r.Min.Y, y)
		r.Max.X, r.Max.Y = max(r.Max.X, x), max(r.Max.Y, y)
	}
	return r, true
}

// languageCodes maps Tesseract codes (eng, spa) to the two-letter codes the service expects.
func languageCodes(langs []string) []string {
	m := map[string]string{"eng": "en", "spa": "es", "por": "pt", "fra": "fr", "deu": "de", "ita": "it", "rus": "ru"}
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if v, ok := m[l]; ok {
			l = v
		}
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
