// Package telegram is the chat front end: a photo of a question goes in,
// the pipeline publishes it, the chat gets a short report back.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/store"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
	ParentFor(req pipeline.Request) string
}

// Ledger finds earlier successful runs of the same photo under a page.
type Ledger interface {
	FindPublished(ctx context.Context, imageHash, parentPage string, maxAge time.Duration) (*store.RunRow, error)
}

type Router struct {
	Bot      Bot
	Pipeline Runner
	Ledger   Ledger // optional
	Log      logrus.FieldLogger
	Debounce time.Duration

	batches sync.Map // key -> *photoBatch
	chats   sync.Map // chatID -> *chatSettings
	wg      sync.WaitGroup
}

func NewRouter(bot Bot, p Runner, ledger Ledger, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{Bot: bot, Pipeline: p, Ledger: ledger, Log: log, Debounce: defaultDebounce}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(upd)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(ctx, *upd.Message)
		return
	}
	if upd.Message.Document != nil && strings.HasPrefix(upd.Message.Document.MimeType, "image/") {
		r.acceptDocument(ctx, *upd.Message)
	}
}

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	args := strings.TrimSpace(upd.Message.CommandArguments())
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, "Send a photo of a multiple-choice question and I will publish it to Notion.\n"+
			"Commands: /number N, /page PAGE_ID, /health")
	case "health":
		r.send(cid, "✅ OK")
	case "number":
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			r.send(cid, "Usage: /number N (0 lets Notion number the questions)")
			return
		}
		s := r.settings(cid)
		s.mu.Lock()
		s.number = n
		s.mu.Unlock()
		r.send(cid, fmt.Sprintf("Next question number: %d", n))
	case "page":
		s := r.settings(cid)
		s.mu.Lock()
		s.page = args
		s.mu.Unlock()
		if args == "" {
			r.send(cid, "Publishing to the default page.")
			return
		}
		r.send(cid, "Publishing to page "+args)
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	switch cb.Data {
	case "retry":
		s := r.settings(cid)
		s.mu.Lock()
		img := s.last
		s.mu.Unlock()
		if img == nil {
			r.send(cid, "Nothing to retry. Send the photo again.")
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.process(context.WithoutCancel(ctx), cid, img)
		}()
	}
}

// Wait blocks until every in-flight photo batch and retry has been processed.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.WithError(err).WithField("chat_id", chatID).Warn("telegram send failed")
	}
}

func (r *Router) sendWithRetry(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = retryKeyboard()
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.WithError(err).WithField("chat_id", chatID).Warn("telegram send failed")
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
