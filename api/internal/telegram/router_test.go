package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizdoc/api/internal/interpret"
	"quizdoc/api/internal/ocr"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/store"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	fileURL string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(string) (string, error) { return b.fileURL, nil }

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, m := range b.sent {
		out[i] = m.Text
	}
	return out
}

func (b *fakeBot) last() tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[len(b.sent)-1]
}

type fakeRunner struct {
	mu   sync.Mutex
	reqs []pipeline.Request
	err  error
	gate chan struct{} // when set, Run blocks until it is closed
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return pipeline.Outcome{State: pipeline.Failed, Err: f.err}, f.err
	}
	return pipeline.Outcome{
		State:   pipeline.Done,
		BlockID: "blk-1",
		Question: &interpret.Question{Stem: "2+2?", Options: []interpret.Option{
			{Label: "A", Text: "4", IsCorrect: true, Explanation: "sí"},
			{Label: "B", Text: "5", Explanation: "no"},
		}},
		Attempts: 1,
	}, nil
}

func (f *fakeRunner) ParentFor(req pipeline.Request) string {
	if req.ParentPageID != "" {
		return req.ParentPageID
	}
	return "default-page"
}

func (f *fakeRunner) requests() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

type fakeLedger struct{ row *store.RunRow }

func (l fakeLedger) FindPublished(_ context.Context, _, parentPage string, _ time.Duration) (*store.RunRow, error) {
	if l.row == nil || l.row.ParentPage != parentPage {
		return nil, store.ErrNotFound
	}
	return l.row, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestRouter(t *testing.T, runner Runner, ledger Ledger) (*Router, *fakeBot) {
	t.Helper()
	body := pngBytes(t, 64, 48)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	bot := &fakeBot{fileURL: srv.URL + "/file.png"}
	log, _ := test.NewNullLogger()
	r := NewRouter(bot, runner, ledger, log)
	r.Debounce = 10 * time.Millisecond
	return r, bot
}

func command(chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, c := range text {
		if c == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func photo(chatID int64, group string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:         &tgbotapi.Chat{ID: chatID},
		MediaGroupID: group,
		Photo:        []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}}
}

func TestRouter_PhotoIsPublishedWithChatNumber(t *testing.T) {
	runner := &fakeRunner{}
	r, bot := newTestRouter(t, runner, nil)
	ctx := context.Background()

	r.HandleUpdate(ctx, command(7, "/number 5"))
	r.HandleUpdate(ctx, photo(7, ""))
	r.Wait()

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 5, reqs[0].Number)
	require.NotNil(t, reqs[0].Image)
	assert.Equal(t, 64, reqs[0].Image.Width)
	assert.NotEmpty(t, reqs[0].Image.Hash)

	assert.Contains(t, bot.last().Text, "✅ Published (blk-1)")
	assert.Contains(t, bot.last().Text, "✓ A. 4")
	assert.Equal(t, 6, r.settings(7).number)
}

func TestRouter_AlbumIsMerged(t *testing.T) {
	runner := &fakeRunner{}
	r, _ := newTestRouter(t, runner, nil)
	r.Debounce = 300 * time.Millisecond
	ctx := context.Background()

	r.HandleUpdate(ctx, photo(7, "album-1"))
	r.HandleUpdate(ctx, photo(7, "album-1"))
	r.Wait()

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 96, reqs[0].Image.Height)
}

func TestRouter_FailureOffersRetry(t *testing.T) {
	runner := &fakeRunner{err: &pipeline.Failure{Stage: pipeline.Extracting, Err: ocr.ErrNoText}}
	r, bot := newTestRouter(t, runner, nil)
	ctx := context.Background()

	r.HandleUpdate(ctx, photo(9, ""))
	r.Wait()

	msg := bot.last()
	assert.Contains(t, msg.Text, "Failed during Extracting (OcrError.NoText)")
	assert.Contains(t, msg.Text, "No readable text")
	assert.NotNil(t, msg.ReplyMarkup)

	r.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", Data: "retry", Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}},
	}})
	r.Wait()
	assert.Len(t, runner.requests(), 2)
}

func TestRouter_RetryDoesNotBlockUpdates(t *testing.T) {
	runner := &fakeRunner{err: &pipeline.Failure{Stage: pipeline.Extracting, Err: ocr.ErrNoText}}
	r, _ := newTestRouter(t, runner, nil)
	ctx := context.Background()

	r.HandleUpdate(ctx, photo(9, ""))
	r.Wait()

	runner.mu.Lock()
	runner.gate = make(chan struct{})
	runner.mu.Unlock()

	returned := make(chan struct{})
	go func() {
		r.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: "cb", Data: "retry", Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}},
		}})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("retry callback blocked the update loop")
	}
	assert.Len(t, runner.requests(), 1)

	close(runner.gate)
	r.Wait()
	assert.Len(t, runner.requests(), 2)
}

func TestRouter_AlreadyPublished(t *testing.T) {
	tests := []struct {
		name        string
		publishedTo string
		page        string
		wantRuns    int
	}{
		{name: "same default page", publishedTo: "default-page", wantRuns: 0},
		{name: "same override page", publishedTo: "pg-2", page: "pg-2", wantRuns: 0},
		{name: "other page", publishedTo: "default-page", page: "pg-2", wantRuns: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			r, bot := newTestRouter(t, runner, fakeLedger{row: &store.RunRow{BlockID: "old-blk", ParentPage: tt.publishedTo}})
			ctx := context.Background()

			if tt.page != "" {
				r.HandleUpdate(ctx, command(3, "/page "+tt.page))
			}
			r.HandleUpdate(ctx, photo(3, ""))
			r.Wait()

			assert.Len(t, runner.requests(), tt.wantRuns)
			if tt.wantRuns == 0 {
				assert.Contains(t, bot.last().Text, "already published to this page (old-blk)")
			} else {
				assert.Contains(t, bot.last().Text, "✅ Published (blk-1)")
			}
		})
	}
}

func TestRouter_Commands(t *testing.T) {
	r, bot := newTestRouter(t, &fakeRunner{}, nil)
	ctx := context.Background()

	r.HandleUpdate(ctx, command(1, "/start"))
	r.HandleUpdate(ctx, command(1, "/number x"))
	r.HandleUpdate(ctx, command(1, "/page abc123"))
	r.HandleUpdate(ctx, command(1, "/nope"))

	texts := bot.texts()
	require.Len(t, texts, 4)
	assert.Contains(t, texts[0], "Send a photo")
	assert.Contains(t, texts[1], "Usage: /number")
	assert.Equal(t, "Publishing to page abc123", texts[2])
	assert.Equal(t, "Unknown command", texts[3])
	assert.Equal(t, "abc123", r.settings(1).page)
}

func TestFailureText(t *testing.T) {
	o := pipeline.Outcome{Err: &pipeline.Failure{Stage: pipeline.Interpreting, Err: &interpret.Error{
		Reason: interpret.SchemaInvalid, Attempts: 3,
		Violations: []interpret.Violation{{Path: "options", Problem: "exactly one option must have isCorrect=true, got 2"}},
	}}}
	txt := failureText(o)
	assert.Contains(t, txt, "Interpreting (InterpretError.SchemaInvalid)")
	assert.Contains(t, txt, "got 2")

	assert.Contains(t, failureText(pipeline.Outcome{Err: errors.New("odd")}), "odd")
}

func TestCombineAsOne(t *testing.T) {
	one := pngBytes(t, 40, 30)
	got, err := combineAsOne([][]byte{one})
	require.NoError(t, err)
	assert.Equal(t, one, got)

	got, err = combineAsOne([][]byte{pngBytes(t, 40, 30), pngBytes(t, 20, 10)})
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 40), img.Bounds().Size())

	_, err = combineAsOne([][]byte{one, []byte("junk")})
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, 2*time.Second, retryDelayFromError(timeoutErr{}))
	assert.Equal(t, time.Second, retryDelayFromError(errors.New("boom")))
}

type fakeUpdater struct {
	calls  int
	cancel context.CancelFunc
}

func (u *fakeUpdater) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	u.calls++
	if u.calls == 1 {
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	}
	if cfg.Offset != 12 {
		return nil, errors.New("offset not advanced")
	}
	u.cancel()
	return nil, nil
}

func TestRunPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	u := &fakeUpdater{cancel: cancel}
	log, _ := test.NewNullLogger()

	var got []int
	RunPolling(ctx, u, log, func(upd tgbotapi.Update) { got = append(got, upd.UpdateID) })

	assert.Equal(t, []int{10, 11}, got)
	assert.Equal(t, 2, u.calls)
}
