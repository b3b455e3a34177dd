package mcp

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/types"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubEngine struct {
	submitted []chat.SubmitRequest
	summaries []types.ConversationSummary
	views     []types.MessageView
	read      []string
	err       error
}

func (e *stubEngine) Submit(_ context.Context, req chat.SubmitRequest) (types.SubmitResult, error) {
	if e.err != nil {
		return types.SubmitResult{}, e.err
	}
	e.submitted = append(e.submitted, req)
	return types.SubmitResult{View: types.MessageView{ID: "msg-1", TargetName: "Bob"}}, nil
}

func (e *stubEngine) ListConversations(context.Context, string) iter.Seq2[types.ConversationSummary, error] {
	return func(yield func(types.ConversationSummary, error) bool) {
		for _, summary := range e.summaries {
			if !yield(summary, nil) {
				return
			}
		}
	}
}

func (e *stubEngine) ConversationMessages(context.Context, string, types.Participant, *types.MessageQueryOptions) ([]types.MessageView, error) {
	return e.views, e.err
}

func (e *stubEngine) MarkRead(_ context.Context, _ string, messageID string) error {
	if e.err != nil {
		return e.err
	}
	e.read = append(e.read, messageID)
	return nil
}

func connect(t *testing.T, engine Engine) *mcp.ClientSession {
	t.Helper()
	server, err := NewServer(engine, "usr-alice", "test")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("call %s: empty content", name)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("call %s: unexpected content %T", name, result.Content[0])
	}
	return text.Text, result.IsError
}

func TestNewServerRequiresUser(t *testing.T) {
	if _, err := NewServer(&stubEngine{}, "  ", "test"); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestSendTool(t *testing.T) {
	engine := &stubEngine{}
	session := connect(t, engine)

	text, isError := callText(t, session, "parley_send", map[string]any{"to": "usr-bob", "body": " hi ", "reply_to": "#msg-0"})
	if isError {
		t.Fatalf("unexpected error result: %s", text)
	}
	if !strings.Contains(text, "#msg-1") {
		t.Fatalf("unexpected text %q", text)
	}
	if len(engine.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(engine.submitted))
	}
	req := engine.submitted[0]
	if req.ActorID != "usr-alice" || req.Body != "hi" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, ok := req.Target.(types.UserTarget); !ok {
		t.Fatalf("expected user target, got %T", req.Target)
	}
	if req.ThreadParentID == nil || *req.ThreadParentID != "msg-0" {
		t.Fatalf("expected reply parent msg-0, got %v", req.ThreadParentID)
	}

	text, isError = callText(t, session, "parley_send", map[string]any{"to": "usr-bob", "body": "  "})
	if !isError || !strings.Contains(text, "empty") {
		t.Fatalf("expected empty body error, got %q", text)
	}
}

func TestSendToolReportsCode(t *testing.T) {
	session := connect(t, &stubEngine{err: apperr.Forbidden("not a member")})

	text, isError := callText(t, session, "parley_send", map[string]any{"to": "grp-x", "group": true, "body": "hi"})
	if !isError || !strings.Contains(text, "FORBIDDEN") {
		t.Fatalf("expected forbidden error, got %q", text)
	}
}

func TestInboxTool(t *testing.T) {
	engine := &stubEngine{summaries: []types.ConversationSummary{
		{CounterpartName: "Bob", Kind: types.ConversationDirect, Unread: 2, LastMessage: "hey"},
		{CounterpartName: "Team", Kind: types.ConversationGroup, LastMessage: "standup"},
	}}
	session := connect(t, engine)

	text, _ := callText(t, session, "parley_inbox", map[string]any{"limit": 1})
	if !strings.Contains(text, "Bob (2 unread): hey") {
		t.Fatalf("unexpected inbox %q", text)
	}
	if strings.Contains(text, "Team") {
		t.Fatalf("expected limit to stop iteration, got %q", text)
	}
}

func TestHistoryToolOrdersOldestFirst(t *testing.T) {
	engine := &stubEngine{views: []types.MessageView{
		{ID: "msg-2", SenderName: "Bob", Text: "second"},
		{ID: "msg-1", SenderName: "Alice", Text: "first"},
	}}
	session := connect(t, engine)

	text, _ := callText(t, session, "parley_history", map[string]any{"with": "usr-bob"})
	first := strings.Index(text, "first")
	second := strings.Index(text, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected oldest first, got %q", text)
	}
}

func TestReadTool(t *testing.T) {
	engine := &stubEngine{}
	session := connect(t, engine)

	if text, isError := callText(t, session, "parley_read", map[string]any{"message_id": "#msg-9"}); isError {
		t.Fatalf("unexpected error: %s", text)
	}
	if len(engine.read) != 1 || engine.read[0] != "msg-9" {
		t.Fatalf("unexpected reads: %v", engine.read)
	}
}
