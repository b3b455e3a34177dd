package command

import (
	"database/sql"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/crypto"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/notify"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/translate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type closingNotifier interface {
	chat.Notifier
	Close() error
}

// NewEngine wires the engine's collaborators from config. The returned
// cleanup waits for background delivery and closes the notifier.
func NewEngine(cfg *core.Config, conn *sql.DB, logger *zap.Logger, publisher realtime.Publisher) (*chat.Service, func() error, error) {
	box, err := crypto.NewBox(cfg.Crypto.Passphrase, cfg.Crypto.Salt, crypto.DefaultKDFParams())
	if err != nil {
		return nil, nil, err
	}

	var translator chat.Translator = translate.Identity{}
	if cfg.Translate.Endpoint != "" {
		translator = translate.NewHTTPTranslator(translate.Config{
			Endpoint: cfg.Translate.Endpoint,
			APIKey:   cfg.Translate.APIKey,
			Timeout:  cfg.Translate.Timeout,
		}, logger)
	}

	var notifier closingNotifier = notify.LogNotifier{Logger: logger}
	if len(cfg.Kafka.Brokers) > 0 {
		notifier = notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic)
	}

	svc := chat.NewService(conn, chat.Deps{
		Directory:  db.Directory{DB: conn},
		Encrypter:  box,
		Translator: translator,
		Publisher:  publisher,
		Notifier:   notifier,
		Logger:     logger,
	}, chat.Options{
		PreviewTimeout:   cfg.Chat.PreviewTimeout,
		BroadcastTimeout: cfg.Chat.BroadcastTimeout,
		NotifyTimeout:    cfg.Chat.NotifyTimeout,
	})

	cleanup := func() error {
		svc.Wait()
		return notifier.Close()
	}
	return svc, cleanup, nil
}

func newRedisClient(cfg *core.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
