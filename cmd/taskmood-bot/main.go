package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/smith3v/taskmood-bot/pkg/bot/handlers"
	"github.com/smith3v/taskmood-bot/pkg/config"
	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"github.com/smith3v/taskmood-bot/pkg/maintenance"
	"github.com/smith3v/taskmood-bot/pkg/notify"
	"github.com/smith3v/taskmood-bot/pkg/reminders"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "config.yaml"

func main() {
	configFile := os.Getenv("TASKBOT_CONFIG_FILE")
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if err := config.LoadConfig(configFile); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(logger.Options{
		Level:  config.AppConfig.Logging.Level,
		File:   config.AppConfig.Logging.File,
		Format: config.AppConfig.Logging.Format,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}

	if err := db.InitDB(config.AppConfig.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := bot.New(config.AppConfig.Telegram.Token, bot.WithDefaultHandler(handlers.DefaultHandler))
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, handlers.HandleStart)

	if err := run(ctx, b); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, b *bot.Bot) error {
	rc := config.AppConfig.Reminders
	scheduler := reminders.New(reminders.Deps{
		Tasks:     db.NewTaskStore(db.DB).WithDefaultLeadHours(rc.DefaultLeadHours),
		Settings:  db.NewSettingsStore(db.DB).WithDefaults(rc.DefaultLeadHours, rc.DefaultDigestTime),
		Reminders: db.NewReminderRepository(db.DB),
		Notifier: notify.NewTelegramNotifier(b, notify.BreakerSettings{
			MaxFailures: rc.BreakerMaxFailures,
			Cooldown:    rc.BreakerCooldown,
		}),
	}, reminders.ConfigFrom(rc))

	var cleanup *maintenance.Job
	if config.AppConfig.Maintenance.Enabled {
		job, err := maintenance.New(db.DB, maintenance.OptionsFrom(config.AppConfig.Maintenance, rc))
		if err != nil {
			return fmt.Errorf("failed to set up maintenance: %w", err)
		}
		cleanup = job
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting bot...")
		b.Start(gCtx)
		if gCtx.Err() == nil {
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	if cleanup != nil {
		g.Go(func() error {
			cleanup.Start()
			<-gCtx.Done()
			return cleanup.Stop()
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bot stopped")
	return nil
}
