package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/app"
	"quizdoc/api/internal/config"
	"quizdoc/api/internal/handle"
	"quizdoc/api/internal/httpserver"
	"quizdoc/api/internal/logging"
	"quizdoc/api/internal/telegram"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logrus.Fatal(err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatal(err)
	}
	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{}, log)
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("telegram login")
	}
	bot.Debug = false
	log.WithField("bot", bot.Self.UserName).Info("telegram bot authorized")

	var ledger telegram.Ledger
	var runs handle.RunLister
	if a.Runs != nil {
		ledger, runs = a.Runs, a.Runs
	}
	r := telegram.NewRouter(bot, a.Pipeline, ledger, log)

	mux := httpserver.NewMux(a.Ping)
	handle.New(a.Pipeline, a.Interpreter, runs, log).Register(mux)
	srv := httpserver.New("0.0.0.0:"+cfg.Port, mux, log)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.WithError(err).Error("http server")
		}
	}()

	telegram.RunPolling(ctx, bot, log, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
	r.Wait()
}
