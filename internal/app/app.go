// Package app assembles the bot: configuration, logging, storage, feed
// gateway, Telegram transport, command router and broadcast loop.
package app

import (
	"context"
	"fmt"

	"blogbot/internal/admins"
	"blogbot/internal/bot"
	"blogbot/internal/broadcast"
	"blogbot/internal/config"
	"blogbot/internal/feed"
	"blogbot/internal/runtime/supervisor"
	"blogbot/internal/subscribers"
	"blogbot/pkg/logx"
)

// App owns every long-lived component. Construction failures are startup
// failures; after Start, all errors are log-and-continue.
type App struct {
	cfg   *config.Config
	log   logx.Logger
	store *subscribers.Store
	tg    *bot.Telegram
	loop  *broadcast.Loop
	sup   *supervisor.Supervisor
}

// New builds the full component graph from the config file at cfgPath.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	busyTimeout, err := cfg.BusyTimeout()
	if err != nil {
		return nil, err
	}
	store, err := subscribers.Open(subscribers.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "subscribers")))
	if err != nil {
		return nil, err
	}

	adminList, err := admins.Load(cfg.AdminFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("admin allow-list loaded", logx.String("path", cfg.AdminFile), logx.Int("admins", adminList.Len()))

	fetchTimeout, err := cfg.FetchTimeout()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	gateway := feed.New(cfg.Feed.URL, fetchTimeout)

	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tg, err := bot.NewTelegram(bot.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	router := bot.NewRouter(store, gateway, tg, adminList, log.With(logx.String("comp", "router")))
	tg.Register(router)

	interval, err := cfg.Interval()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	loop := broadcast.NewLoop(broadcast.Config{
		Interval:       interval,
		SendRatePerSec: cfg.Broadcast.SendRatePerSec,
	}, gateway, broadcast.NewDetector(), store, tg, log.With(logx.String("comp", "broadcast")))

	return &App{cfg: cfg, log: log, store: store, tg: tg, loop: loop}, nil
}

// Run starts the poller and the broadcast loop and blocks until ctx is
// cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.loop.Start(a.sup.Context())
	a.sup.Go0("telegram.poll", func(c context.Context) {
		a.tg.Start(c)
	})

	<-a.sup.Context().Done()

	a.loop.Stop()
	a.sup.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	_ = a.log.Close()
	return a.sup.FirstErr()
}
