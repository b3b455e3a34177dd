package command

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	DB       *sql.DB
	Config   *core.Config
	Logger   *zap.Logger
	JSONMode bool
	Actor    string
}

// GetContext loads config and opens the database for a command.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, _ := cmd.Flags().GetString("config")
	dbPath, _ := cmd.Flags().GetString("db")
	jsonMode, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")
	actor, _ := cmd.Flags().GetString("as")

	cfg, _, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger := zap.NewNop()
	if verbose {
		logger, _, err = core.NewLogger(cfg)
		if err != nil {
			return nil, err
		}
	}

	conn, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &CommandContext{
		DB:       conn,
		Config:   cfg,
		Logger:   logger,
		JSONMode: jsonMode,
		Actor:    strings.TrimSpace(actor),
	}, nil
}

func (c *CommandContext) Close() error {
	_ = c.Logger.Sync()
	return c.DB.Close()
}

// RequireActor returns the --as user id.
func (c *CommandContext) RequireActor() (string, error) {
	if c.Actor == "" {
		return "", errors.New("--as is required")
	}
	return c.Actor, nil
}

// Engine builds a conversation engine for a one-shot command. When Redis is
// configured, events reach clients connected to any running server.
func (c *CommandContext) Engine() (*chat.Service, func() error, error) {
	var publisher realtime.Publisher
	client := newRedisClient(c.Config)
	if client != nil {
		publisher = realtime.NewRedisPublisher(client, c.Config.Redis.Prefix)
	}
	svc, cleanup, err := NewEngine(c.Config, c.DB, c.Logger, publisher)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}
	return svc, func() error {
		err := cleanup()
		if client != nil {
			_ = client.Close()
		}
		return err
	}, nil
}
