package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamavenir/parley/internal/api"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/daemon"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCmd runs the HTTP and websocket server.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dbPath, _ := cmd.Flags().GetString("db")
			port, _ := cmd.Flags().GetString("port")
			return runServe(cmd.Context(), configPath, dbPath, port)
		},
	}
	cmd.Flags().String("port", "", "override app.port")
	return cmd
}

func runServe(parent context.Context, configPath, dbPath, port string) error {
	cfg, v, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if port != "" {
		cfg.App.Port = port
	}

	logger, level, err := core.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	core.WatchConfig(v, func(next *core.Config) {
		if err := core.SetLogLevel(level, next.App.LogLevel); err != nil {
			logger.Warn("config reload", zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("log_level", next.App.LogLevel))
	}, func(err error) {
		logger.Warn("config reload rejected", zap.Error(err))
	})

	auth, err := api.NewAuthenticator(cfg.JWT.HSSecret)
	if err != nil {
		return err
	}

	conn, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	if err := db.InitSchema(conn); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	if client := newRedisClient(cfg); client != nil {
		defer client.Close()
		publisher = realtime.NewRedisPublisher(client, cfg.Redis.Prefix)
		sub := realtime.NewSubscriber(client, cfg.Redis.Prefix, hub, logger)
		go func() {
			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis subscriber stopped", zap.Error(err))
			}
		}()
	}

	svc, cleanup, err := NewEngine(cfg, conn, logger, publisher)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("engine cleanup", zap.Error(err))
		}
	}()

	lockPath := daemon.LockPathFor(cfg.Database.Path)
	sweeper := daemon.New(svc, daemon.Config{
		PollInterval: cfg.Chat.PurgeInterval,
		LockPath:     lockPath,
		Logger:       logger,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Info("expiry sweeper not started",
			zap.Bool("held_by_live_process", daemon.IsLocked(lockPath)),
			zap.Error(err))
	} else {
		defer func() { _ = sweeper.Stop() }()
	}

	limiter := api.NewRateLimiter(cfg.Rate.PerMinute, cfg.Rate.Burst, logger)
	go limiter.Run(ctx)

	metrics.Register()

	app := api.New(api.Config{
		Engine:  svc,
		Groups:  db.Directory{DB: conn},
		Hub:     hub,
		Auth:    auth,
		Limiter: limiter,
		Logger:  logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.App.Port), zap.String("db", cfg.Database.Path))
		listenErr <- app.Listen(":" + cfg.App.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	return nil
}
