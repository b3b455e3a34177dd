package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/types"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type sendArgs struct {
	To      string `json:"to" jsonschema:"User id, or group id when group is true"`
	Group   bool   `json:"group,omitempty" jsonschema:"Send to a group instead of a user"`
	Body    string `json:"body" jsonschema:"Message text"`
	ReplyTo string `json:"reply_to,omitempty" jsonschema:"Id of the message this replies to"`
}

type inboxArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of conversations to return (default: 20)"`
}

type historyArgs struct {
	With  string `json:"with" jsonschema:"User id, or group id when group is true"`
	Group bool   `json:"group,omitempty" jsonschema:"Read a group conversation"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of messages to return (default: 10)"`
}

type readArgs struct {
	MessageID string `json:"message_id" jsonschema:"Id of the message to mark read"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parley_send",
		Description: "Send a text message to a user or group.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args sendArgs) (*mcp.CallToolResult, any, error) {
		return s.handleSend(ctx, args), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parley_inbox",
		Description: "List conversations, newest first, with unread counts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args inboxArgs) (*mcp.CallToolResult, any, error) {
		return s.handleInbox(ctx, args.Limit), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parley_history",
		Description: "Show recent messages in a conversation, oldest first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args historyArgs) (*mcp.CallToolResult, any, error) {
		return s.handleHistory(ctx, args), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parley_read",
		Description: "Mark a message as read.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args readArgs) (*mcp.CallToolResult, any, error) {
		return s.handleRead(ctx, args.MessageID), nil, nil
	})
}

func participant(id string, group bool) types.Participant {
	if group {
		return types.GroupTarget{GroupID: id}
	}
	return types.UserTarget{UserID: id}
}

func (s *Server) handleSend(ctx context.Context, args sendArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.Body) == "" {
		return toolError("Error: Message body cannot be empty")
	}
	to := strings.TrimSpace(args.To)
	if to == "" {
		return toolError("Error: Recipient is required")
	}

	req := chat.SubmitRequest{
		ActorID: s.actorID,
		Target:  participant(to, args.Group),
		Body:    strings.TrimSpace(args.Body),
		Kind:    types.MessageKindText,
	}
	if parent := sanitizeMessageID(args.ReplyTo); parent != "" {
		req.ThreadParentID = &parent
	}

	result, err := s.engine.Submit(ctx, req)
	if err != nil {
		return errorResult(err)
	}
	return toolResult(fmt.Sprintf("Sent message #%s to %s", result.View.ID, result.View.TargetName), false)
}

func (s *Server) handleInbox(ctx context.Context, limit int) *mcp.CallToolResult {
	if limit <= 0 {
		limit = 20
	}
	var lines []string
	for summary, err := range s.engine.ListConversations(ctx, s.actorID) {
		if err != nil {
			return errorResult(err)
		}
		unread := ""
		if summary.Unread > 0 {
			unread = fmt.Sprintf(" (%d unread)", summary.Unread)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s%s: %s", summary.Kind, summary.CounterpartName, unread, summary.LastMessage))
		if len(lines) >= limit {
			break
		}
	}
	if len(lines) == 0 {
		return toolResult("No conversations", false)
	}
	return toolResult(fmt.Sprintf("Conversations (%d):\n\n%s", len(lines), strings.Join(lines, "\n")), false)
}

func (s *Server) handleHistory(ctx context.Context, args historyArgs) *mcp.CallToolResult {
	with := strings.TrimSpace(args.With)
	if with == "" {
		return toolError("Error: Conversation is required")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	views, err := s.engine.ConversationMessages(ctx, s.actorID, participant(with, args.Group), &types.MessageQueryOptions{Limit: limit})
	if err != nil {
		return errorResult(err)
	}
	if len(views) == 0 {
		return toolResult("No messages", false)
	}
	return toolResult(fmt.Sprintf("Recent messages (%d):\n\n%s", len(views), formatViews(views)), false)
}

func (s *Server) handleRead(ctx context.Context, messageID string) *mcp.CallToolResult {
	id := sanitizeMessageID(messageID)
	if id == "" {
		return toolError("Error: Message id is required")
	}
	if err := s.engine.MarkRead(ctx, s.actorID, id); err != nil {
		return errorResult(err)
	}
	return toolResult(fmt.Sprintf("Marked #%s read", id), false)
}

// formatViews renders newest-first views oldest first.
func formatViews(views []types.MessageView) string {
	lines := make([]string, 0, len(views))
	for i := len(views) - 1; i >= 0; i-- {
		view := views[i]
		reply := ""
		if view.Thread != nil {
			reply = fmt.Sprintf(" (re: %s)", view.Thread.TranslatedText)
		}
		lines = append(lines, fmt.Sprintf("[#%s] @%s: %s%s", core.ShortID(view.ID, 0), view.SenderName, view.Text, reply))
	}
	return strings.Join(lines, "\n")
}

func errorResult(err error) *mcp.CallToolResult {
	if code := apperr.CodeOf(err); code != apperr.CodeUnknown {
		return toolError(fmt.Sprintf("Error (%s): %s", code, err.Error()))
	}
	return toolError("Error: " + err.Error())
}

func toolResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func toolError(text string) *mcp.CallToolResult {
	return toolResult(text, true)
}

func sanitizeMessageID(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "@")
	trimmed = strings.TrimPrefix(trimmed, "#")
	return trimmed
}
