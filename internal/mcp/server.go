package mcp

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/types"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Engine is the part of the conversation engine exposed as tools.
type Engine interface {
	Submit(ctx context.Context, req chat.SubmitRequest) (types.SubmitResult, error)
	ListConversations(ctx context.Context, ownerID string) iter.Seq2[types.ConversationSummary, error]
	ConversationMessages(ctx context.Context, actorID string, counterpart types.Participant, opts *types.MessageQueryOptions) ([]types.MessageView, error)
	MarkRead(ctx context.Context, actorID, messageID string) error
}

// Server exposes one user's conversations over MCP.
type Server struct {
	server  *mcp.Server
	engine  Engine
	actorID string
}

// NewServer registers the parley tools acting as actorID.
func NewServer(engine Engine, actorID, version string) (*Server, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, errors.New("mcp: user id is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "parley", Version: version}, nil)
	s := &Server{server: server, engine: engine, actorID: actorID}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
