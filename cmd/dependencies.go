package cmd

import (
	"context"
	"poseidon/config"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/postgres"
	"poseidon/pkg/telegram"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm"
)

type AppDependency struct {
	db          *postgres.DB
	cfg         *config.Config
	log         *logger.Logger
	validator   *goValidator.Validate
	echo        *echo.Echo
	cache       cache.Cache
	metrics     *metrics.Metrics
	notifier    *telegram.Notifier
	telegramBot *telebot.Bot
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	bot, err := telegram.NewBot(&cfg.Telegram)
	if err != nil {
		return nil, err
	}

	// the alert hook needs the notifier, which needs the logger
	var notifier *telegram.Notifier
	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Alert: func(message string) {
			notifier.SendAlert(message)
		},
	})
	if err != nil {
		return nil, err
	}

	var sender telegram.Sender
	if bot != nil {
		sender = bot
	}
	notifier = telegram.NewNotifier(&cfg.Telegram, log, sender)

	var db *postgres.DB
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", logger.ErrorField(err))
			return nil, err
		}
	} else {
		log.Info("Database is disabled, journals and job history are not persisted")
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:         cfg,
		log:         log,
		validator:   goValidator.New(),
		db:          db,
		echo:        e,
		cache:       cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		metrics:     metrics.New(),
		notifier:    notifier,
		telegramBot: bot,
	}, nil
}

// gormDB is nil when the database is disabled.
func (d *AppDependency) gormDB() *gorm.DB {
	if d.db == nil {
		return nil
	}
	return d.db.DB
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	defer func() { _ = d.log.Sync() }()
	return d.db.Close()
}
