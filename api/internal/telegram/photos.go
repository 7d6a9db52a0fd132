package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"quizdoc/api/internal/imaging"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/store"
)

const maxDownload = 20 << 20

func (r *Router) acceptPhoto(ctx context.Context, msg tgbotapi.Message) {
	ph := msg.Photo[len(msg.Photo)-1]
	r.acceptFile(ctx, msg, ph.FileID)
}

func (r *Router) acceptDocument(ctx context.Context, msg tgbotapi.Message) {
	r.acceptFile(ctx, msg, msg.Document.FileID)
}

// acceptFile collects photos of one album (or a quick series in one chat)
// and processes them together once no new photo arrived for Debounce.
func (r *Router) acceptFile(ctx context.Context, msg tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(cid, "❌ Could not fetch the photo: "+err.Error())
		return
	}
	imgBytes, err := download(ctx, url)
	if err != nil {
		r.send(cid, "❌ Could not download the photo: "+err.Error())
		return
	}

	key := "chat:" + fmt.Sprint(cid)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}
	bi, loaded := r.batches.LoadOrStore(key, &photoBatch{
		ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID, images: make([][]byte, 0, 4),
	})
	b := bi.(*photoBatch)
	if !loaded {
		r.wg.Add(1)
	}

	b.mu.Lock()
	b.images = append(b.images, imgBytes)
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(r.Debounce, func() { r.processBatch(context.WithoutCancel(ctx), key) })
	b.mu.Unlock()

	if first {
		r.send(cid, "Photo received. If the question spans several photos, send them right away.")
	}
}

func (r *Router) processBatch(ctx context.Context, key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	defer r.wg.Done()
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	b.mu.Unlock()
	if len(images) == 0 {
		return
	}

	merged, err := combineAsOne(images)
	if err != nil {
		r.send(b.ChatID, "❌ Could not read the photos: "+err.Error())
		return
	}
	r.process(ctx, b.ChatID, merged)
}

// process runs one merged photo through the pipeline and reports back.
func (r *Router) process(ctx context.Context, chatID int64, data []byte) {
	s := r.settings(chatID)
	s.mu.Lock()
	s.last = data
	number, page := s.number, s.page
	s.mu.Unlock()

	log := r.Log.WithField("chat_id", chatID)
	src := fmt.Sprintf("telegram:%d", chatID)
	raw, err := imaging.Decode(src, data)
	if err != nil {
		r.send(chatID, "❌ Could not decode the photo.")
		return
	}

	req := pipeline.Request{File: src, Image: &raw, Number: number, ParentPageID: page}
	if r.Ledger != nil {
		row, err := r.Ledger.FindPublished(ctx, raw.Hash, r.Pipeline.ParentFor(req), 0)
		switch {
		case err == nil:
			r.send(chatID, "This photo was already published to this page ("+row.BlockID+").")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.WithError(err).Warn("ledger lookup failed")
		}
	}

	out, err := r.Pipeline.Run(ctx, req)
	if err != nil {
		if isCancelled(err) {
			return
		}
		r.sendWithRetry(chatID, failureText(out))
		return
	}
	if number > 0 {
		s.mu.Lock()
		if s.number == number {
			s.number++
		}
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	r.send(chatID, successText(out))
	log.WithFields(logrus.Fields{"run_id": out.RunID, "block_id": out.BlockID}).Info("telegram question published")
}

// combineAsOne stacks the photos vertically on white and re-encodes them
// as one JPEG, scaled down past maxPixels.
func combineAsOne(images [][]byte) ([]byte, error) {
	if len(images) == 1 {
		return images[0], nil
	}
	decoded := make([]image.Image, 0, len(images))
	maxW, sumH := 0, 0
	for _, b := range images {
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, img)
		maxW = max(maxW, img.Bounds().Dx())
		sumH += img.Bounds().Dy()
	}
	if maxW == 0 || sumH == 0 {
		return nil, errors.New("empty images")
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	y := 0
	for _, img := range decoded {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		x := (maxW - w) / 2
		draw.Draw(dst, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Over)
		y += h
	}

	final := image.Image(dst)
	if total := maxW * sumH; total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		newW := max(1, int(float64(maxW)*scale+0.5))
		newH := max(1, int(float64(sumH)*scale+0.5))
		small := image.NewRGBA(image.Rect(0, 0, newW, newH))
		xdraw.ApproxBiLinear.Scale(small, small.Bounds(), dst, dst.Bounds(), xdraw.Src, nil)
		final = small
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, final, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
