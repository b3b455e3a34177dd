package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamavenir/parley/internal/command"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/mcp"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run(userID string) error {
	cfg, _, err := core.LoadConfig(os.Getenv("PARLEY_CONFIG"))
	if err != nil {
		return err
	}
	logger, _, err := core.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.InitSchema(conn); err != nil {
		return err
	}

	var publisher realtime.Publisher
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		publisher = realtime.NewRedisPublisher(client, cfg.Redis.Prefix)
	}

	svc, cleanup, err := command.NewEngine(cfg, conn, logger, publisher)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("engine cleanup", zap.Error(err))
		}
	}()

	server, err := mcp.NewServer(svc, userID, Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mcp server starting", zap.String("user", userID), zap.String("db", cfg.Database.Path))
	return server.Run(ctx)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: parley-mcp <user-id>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Configuration comes from PARLEY_* environment variables, .env,")
	fmt.Fprintln(os.Stderr, "and the YAML file named by PARLEY_CONFIG.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Configure in Claude Desktop (~/Library/Application Support/Claude/claude_desktop_config.json):")
	fmt.Fprintln(os.Stderr, "  {")
	fmt.Fprintln(os.Stderr, "    \"mcpServers\": {")
	fmt.Fprintln(os.Stderr, "      \"parley\": {")
	fmt.Fprintln(os.Stderr, "        \"command\": \"parley-mcp\",")
	fmt.Fprintln(os.Stderr, "        \"args\": [\"usr-alice\"],")
	fmt.Fprintln(os.Stderr, "        \"env\": {\"PARLEY_DATABASE_PATH\": \"/path/to/parley.db\"}")
	fmt.Fprintln(os.Stderr, "      }")
	fmt.Fprintln(os.Stderr, "    }")
	fmt.Fprintln(os.Stderr, "  }")
}
