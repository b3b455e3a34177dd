package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/translate"
	"github.com/adamavenir/parley/internal/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// plainBox stores bodies reversibly for handler tests.
type plainBox struct{}

func (plainBox) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	return "box:" + string(plaintext), nil
}

func (plainBox) Decrypt(_ context.Context, ciphertext string) ([]byte, error) {
	return []byte(ciphertext[len("box:"):]), nil
}

type testServer struct {
	app  *fiber.App
	svc  *chat.Service
	auth *Authenticator
	hub  *realtime.Hub
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	conn, err := db.OpenDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.InitSchema(conn))

	ctx := context.Background()
	for _, user := range []types.User{
		{ID: "usr-alice", Name: "Alice", CreatedAt: 1},
		{ID: "usr-bob", Name: "Bob", CreatedAt: 1},
		{ID: "usr-carol", Name: "Carol", CreatedAt: 1},
	} {
		_, err := db.CreateUser(ctx, conn, user)
		require.NoError(t, err)
	}
	_, err = db.CreateGroup(ctx, conn, types.Group{ID: "grp-team", Name: "Team", CreatedAt: 1})
	require.NoError(t, err)
	require.NoError(t, db.AddGroupMember(ctx, conn, "grp-team", "usr-alice", 1))
	require.NoError(t, db.AddGroupMember(ctx, conn, "grp-team", "usr-bob", 1))

	hub := realtime.NewHub(nil)
	directory := db.Directory{DB: conn}
	svc := chat.NewService(conn, chat.Deps{
		Directory:  directory,
		Encrypter:  plainBox{},
		Translator: translate.Identity{},
		Publisher:  hub,
	}, chat.Options{})
	t.Cleanup(svc.Wait)

	auth, err := NewAuthenticator(testSecret)
	require.NoError(t, err)

	app := New(Config{
		Engine:  svc,
		Groups:  directory,
		Hub:     hub,
		Auth:    auth,
		Limiter: limiter,
	})
	return &testServer{app: app, svc: svc, auth: auth, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path, actor string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actor != "" {
		token, err := ts.auth.Issue(actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	status, _ := ts.do(t, http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := NewAuthenticator("other-secret")
	require.NoError(t, err)
	forged, err := other.Issue("usr-alice", time.Hour)
	require.NoError(t, err)
	_, err = ts.auth.Validate(forged)
	assert.Error(t, err)
}

func TestSubmitAndInbox(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_kind": "user",
		"target_id":   "usr-bob",
		"body":        "hi",
	})
	require.Equal(t, http.StatusCreated, status, body)
	conversation := body["conversation"].(map[string]any)
	message := body["message"].(map[string]any)
	assert.Equal(t, "usr-bob", conversation["counterpart_id"])
	assert.Equal(t, "hi", message["text"])
	assert.Equal(t, true, message["is_mine"])
	key := conversation["conversation_key"].(string)

	status, body = ts.do(t, http.MethodPost, "/v1/messages", "usr-bob", map[string]any{
		"target_id":        "usr-alice",
		"conversation_key": key,
		"body":             "hey",
	})
	require.Equal(t, http.StatusCreated, status, body)
	ts.svc.Wait()

	status, body = ts.do(t, http.MethodGet, "/v1/conversations", "usr-alice", nil)
	require.Equal(t, http.StatusOK, status)
	rows := body["conversations"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "usr-bob", row["counterpart_id"])
	assert.Equal(t, "hey", row["last_message"])
	assert.EqualValues(t, 1, row["unread"])
}

func TestSubmitErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_id": "usr-bob",
		"body":      "x",
		"kind":      "sticker",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_KIND", body["code"])

	status, body = ts.do(t, http.MethodPost, "/v1/messages", "usr-carol", map[string]any{
		"target_kind": "group",
		"target_id":   "grp-team",
		"body":        "let me in",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, _ = ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_kind": "channel",
		"target_id":   "x",
		"body":        "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReadFlagsDeleteAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_id": "usr-bob",
		"body":      "first",
	})
	first := body["message"].(map[string]any)["id"].(string)
	ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_id": "usr-bob",
		"body":      "second",
	})

	status, _ := ts.do(t, http.MethodPost, "/v1/messages/"+first+"/read", "usr-bob", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = ts.do(t, http.MethodPost, "/v1/conversations/usr-alice/read", "usr-bob", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["marked"])

	status, _ = ts.do(t, http.MethodPatch, "/v1/messages/"+first+"/flags", "usr-bob", map[string]any{"starred": true})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(t, http.MethodDelete, "/v1/messages/"+first, "usr-bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.do(t, http.MethodDelete, "/v1/messages/"+first, "usr-alice", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = ts.do(t, http.MethodGet, "/v1/conversations/usr-alice/messages?limit=10", "usr-bob", nil)
	require.Equal(t, http.StatusOK, status)
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "second", messages[0].(map[string]any)["text"])

	status, _ = ts.do(t, http.MethodGet, "/v1/conversations/grp-team/messages?kind=group", "usr-carol", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodGet, "/v1/conversations/usr-alice/messages?before_created_at=abc", "usr-bob", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	ts.svc.Wait()
}

func TestUpdateCall(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_id": "usr-bob",
		"kind":      "call",
	})
	callID := body["message"].(map[string]any)["id"].(string)

	status, body := ts.do(t, http.MethodPatch, "/v1/calls/"+callID, "usr-bob", map[string]any{
		"duration": 61,
		"state":    "ended",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ended", body["call_state"])
	assert.EqualValues(t, 61, body["duration"])

	status, _ = ts.do(t, http.MethodPatch, "/v1/calls/"+callID, "usr-carol", map[string]any{
		"duration": 1,
		"state":    "ended",
	})
	assert.Equal(t, http.StatusForbidden, status)
	ts.svc.Wait()
}

func TestRateLimitPerActor(t *testing.T) {
	ts := newTestServer(t, NewRateLimiter(1, 1, nil))

	status, _ := ts.do(t, http.MethodGet, "/v1/conversations", "usr-alice", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodGet, "/v1/conversations", "usr-alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)

	status, _ = ts.do(t, http.MethodGet, "/v1/conversations", "usr-bob", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := ts.do(t, http.MethodGet, "/v1/ws", "usr-alice", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestSubmitPublishesToHub(t *testing.T) {
	ts := newTestServer(t, nil)
	bob := ts.hub.Register("usr-bob", []string{realtime.UserChannel("usr-bob")})
	defer ts.hub.Unregister(bob)

	status, _ := ts.do(t, http.MethodPost, "/v1/messages", "usr-alice", map[string]any{
		"target_id": "usr-bob",
		"body":      "ping",
	})
	require.Equal(t, http.StatusCreated, status)
	ts.svc.Wait()

	require.Len(t, bob.Send, 2)
	var event realtime.Event
	require.NoError(t, json.Unmarshal(<-bob.Send, &event))
	assert.Equal(t, realtime.EventMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, "ping", event.Message.Text)
	assert.True(t, event.Message.IsMine, "the echoed view is rendered for the submitter")
}

func TestMeetingInviteFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := ts.do(t, http.MethodPost, "/v1/meetings", "usr-alice", map[string]any{
		"title":     "Planning",
		"starts_at": 1800000000000,
	})
	require.Equal(t, http.StatusCreated, status, body)
	meetingID := body["id"].(string)

	status, body = ts.do(t, http.MethodPost, "/v1/meetings/"+meetingID+"/invites", "usr-alice", map[string]any{
		"group_ids": []string{"grp-team"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Len(t, body["invites"], 2)

	status, body = ts.do(t, http.MethodPatch, "/v1/meetings/"+meetingID+"/invite", "usr-bob", map[string]any{
		"status": "joined",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "joined", body["join_status"])

	status, body = ts.do(t, http.MethodGet, "/v1/meetings/invites", "usr-bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["invites"], 1)

	status, _ = ts.do(t, http.MethodPatch, "/v1/meetings/"+meetingID+"/invite", "usr-carol", map[string]any{
		"status": "joined",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, "/v1/meetings/mtg-ghost/invites", "usr-alice", map[string]any{
		"user_ids": []string{"usr-bob"},
	})
	assert.Equal(t, http.StatusNotFound, status)
	ts.svc.Wait()
}
