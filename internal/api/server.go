package api

import (
	"context"
	"iter"
	"time"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// ConnectionIDHeader names the realtime connection a request came from, so
// the sender's own socket is skipped by the echo.
const ConnectionIDHeader = "X-Connection-ID"

// Engine is the conversation engine surface the API drives.
type Engine interface {
	Submit(ctx context.Context, req chat.SubmitRequest) (types.SubmitResult, error)
	ListConversations(ctx context.Context, ownerID string) iter.Seq2[types.ConversationSummary, error]
	ConversationMessages(ctx context.Context, actorID string, counterpart types.Participant, opts *types.MessageQueryOptions) ([]types.MessageView, error)
	MarkRead(ctx context.Context, actorID, messageID string) error
	MarkConversationRead(ctx context.Context, ownerID string, counterpart types.Participant) (int64, error)
	SetFlags(ctx context.Context, actorID, messageID string, flags types.MessageFlags) error
	DeleteMessage(ctx context.Context, actorID, messageID string) error
	UpdateCall(ctx context.Context, actorID, messageID string, duration int64, state types.CallState) (types.CallRecord, error)
	ScheduleMeeting(ctx context.Context, actorID, title string, startsAt int64) (types.Meeting, error)
	InviteToMeeting(ctx context.Context, actorID, meetingID string, invitees ...types.Participant) ([]types.MeetingInvite, error)
	RespondToMeeting(ctx context.Context, actorID, meetingID string, status types.JoinStatus) (types.MeetingInvite, error)
	MeetingInvites(ctx context.Context, actorID string) ([]types.MeetingInvite, error)
}

// GroupLister resolves the groups a connecting user is subscribed to.
type GroupLister interface {
	UserGroups(ctx context.Context, userID string) ([]string, error)
}

type Config struct {
	Engine       Engine
	Groups       GroupLister
	Hub          *realtime.Hub
	Auth         *Authenticator
	Limiter      *RateLimiter
	Logger       *zap.Logger
	PingInterval time.Duration
}

type Server struct {
	engine       Engine
	groups       GroupLister
	hub          *realtime.Hub
	logger       *zap.Logger
	pingInterval time.Duration
}

// New builds the fiber app with every route mounted.
func New(cfg Config) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{
		engine:       cfg.Engine,
		groups:       cfg.Groups,
		hub:          cfg.Hub,
		logger:       logger,
		pingInterval: cfg.PingInterval,
	}

	app := fiber.New(fiber.Config{
		AppName:               "parley",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(accessLog(logger))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1", cfg.Auth.Middleware())
	if cfg.Limiter != nil {
		v1.Use(cfg.Limiter.Handler())
	}
	v1.Post("/messages", s.submit)
	v1.Get("/conversations", s.listConversations)
	v1.Get("/conversations/:counterpart/messages", s.history)
	v1.Post("/conversations/:counterpart/read", s.readConversation)
	v1.Post("/messages/:id/read", s.markRead)
	v1.Patch("/messages/:id/flags", s.setFlags)
	v1.Delete("/messages/:id", s.deleteMessage)
	v1.Patch("/calls/:id", s.updateCall)
	v1.Post("/meetings", s.scheduleMeeting)
	v1.Get("/meetings/invites", s.meetingInvites)
	v1.Post("/meetings/:id/invites", s.inviteToMeeting)
	v1.Patch("/meetings/:id/invite", s.respondToMeeting)
	v1.Get("/ws", s.upgrade, websocket.New(s.serveSocket))

	return app
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)))
		return err
	}
}
