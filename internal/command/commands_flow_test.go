package command

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamavenir/parley/internal/api"
	"github.com/adamavenir/parley/internal/types"
)

func setupCommandEnv(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("PARLEY_CRYPTO_PASSPHRASE", "correct horse battery staple")
	t.Setenv("PARLEY_JWT_HS_SECRET", "test-secret")
	t.Setenv("PARLEY_REDIS_ADDR", "")
	t.Setenv("PARLEY_KAFKA_BROKERS", "")
	return filepath.Join(t.TempDir(), "parley.db")
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	output, err := executeCommand(NewRootCmd("test"), args...)
	if err != nil {
		t.Fatalf("%s: %v (output %q)", strings.Join(args, " "), err, output)
	}
	return output
}

func TestSendInboxReadFlow(t *testing.T) {
	dbPath := setupCommandEnv(t)

	run(t, "--db", dbPath, "init")
	run(t, "--db", dbPath, "user", "add", "Alice", "--id", "usr-alice")
	run(t, "--db", dbPath, "user", "add", "Bob", "--id", "usr-bob")

	out := run(t, "--db", dbPath, "--json", "--as", "usr-alice", "send", "usr-bob", "hello bob")
	var result types.SubmitResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode send output: %v", err)
	}
	if result.View.Text != "hello bob" || !result.View.IsMine {
		t.Fatalf("unexpected view: %+v", result.View)
	}
	if !strings.HasPrefix(result.Meta.ConversationKey, "dm-") {
		t.Fatalf("expected direct key, got %q", result.Meta.ConversationKey)
	}

	out = run(t, "--db", dbPath, "--json", "--as", "usr-alice", "send", "usr-bob", "second")
	var second types.SubmitResult
	if err := json.Unmarshal([]byte(out), &second); err != nil {
		t.Fatalf("decode send output: %v", err)
	}
	if second.Meta.ConversationKey != result.Meta.ConversationKey {
		t.Fatalf("expected same conversation key, got %q and %q", result.Meta.ConversationKey, second.Meta.ConversationKey)
	}

	out = run(t, "--db", dbPath, "--json", "--as", "usr-bob", "inbox")
	var summaries []types.ConversationSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode inbox output: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one conversation, got %d", len(summaries))
	}
	if summaries[0].CounterpartID != "usr-alice" || summaries[0].Unread != 2 || summaries[0].LastMessage != "second" {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}

	run(t, "--db", dbPath, "--as", "usr-bob", "read", result.View.ID)

	out = run(t, "--db", dbPath, "--json", "--as", "usr-bob", "inbox")
	summaries = nil
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode inbox output: %v", err)
	}
	if summaries[0].Unread != 1 {
		t.Fatalf("expected 1 unread after read, got %d", summaries[0].Unread)
	}

	out = run(t, "--db", dbPath, "--as", "usr-bob", "read", "--conversation", "usr-alice")
	if !strings.Contains(out, "Marked 1 messages read") {
		t.Fatalf("unexpected read output: %q", out)
	}

	out = run(t, "--db", dbPath, "--json", "--as", "usr-bob", "history", "usr-alice")
	var views []types.MessageView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode history output: %v", err)
	}
	if len(views) != 2 || views[0].Text != "second" || views[0].IsMine {
		t.Fatalf("unexpected history: %+v", views)
	}
}

func TestSendRequiresActor(t *testing.T) {
	dbPath := setupCommandEnv(t)
	run(t, "--db", dbPath, "init")

	if _, err := executeCommand(NewRootCmd("test"), "--db", dbPath, "send", "usr-bob", "hi"); err == nil {
		t.Fatal("expected error without --as")
	}
}

func TestGroupSendFlow(t *testing.T) {
	dbPath := setupCommandEnv(t)

	run(t, "--db", dbPath, "user", "add", "Alice", "--id", "usr-alice")
	run(t, "--db", dbPath, "user", "add", "Bob", "--id", "usr-bob")
	run(t, "--db", dbPath, "group", "add", "Team", "--id", "grp-team", "--member", "usr-alice", "--member", "usr-bob")

	out := run(t, "--db", dbPath, "--json", "--as", "usr-alice", "send", "--group", "grp-team", "standup")
	var result types.SubmitResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode send output: %v", err)
	}
	if result.Meta.ConversationKey != "grp-team" {
		t.Fatalf("expected group key, got %q", result.Meta.ConversationKey)
	}

	out = run(t, "--db", dbPath, "--json", "--as", "usr-bob", "history", "--group", "grp-team")
	var views []types.MessageView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode history output: %v", err)
	}
	if len(views) != 1 || views[0].Text != "standup" {
		t.Fatalf("unexpected history: %+v", views)
	}
}

func TestTokenCommandIssuesValidToken(t *testing.T) {
	dbPath := setupCommandEnv(t)

	out := run(t, "--db", dbPath, "token", "usr-alice")
	auth, err := api.NewAuthenticator("test-secret")
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	subject, err := auth.Validate(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if subject != "usr-alice" {
		t.Fatalf("expected subject usr-alice, got %q", subject)
	}
}

func TestMeetingInviteFlow(t *testing.T) {
	dbPath := setupCommandEnv(t)

	run(t, "--db", dbPath, "user", "add", "Alice", "--id", "usr-alice")
	run(t, "--db", dbPath, "user", "add", "Bob", "--id", "usr-bob")
	run(t, "--db", dbPath, "group", "add", "Team", "--id", "grp-team", "--member", "usr-alice", "--member", "usr-bob")

	out := run(t, "--db", dbPath, "--json", "--as", "usr-alice", "meeting", "add", "Retro", "--at", "2030-01-02T15:04:05Z")
	var meeting types.Meeting
	if err := json.Unmarshal([]byte(out), &meeting); err != nil {
		t.Fatalf("decode meeting output: %v", err)
	}
	if meeting.ID == "" || meeting.CreatorID != "usr-alice" {
		t.Fatalf("unexpected meeting: %+v", meeting)
	}

	run(t, "--db", dbPath, "--as", "usr-alice", "meeting", "invite", meeting.ID, "--group", "grp-team")
	run(t, "--db", dbPath, "--as", "usr-bob", "meeting", "answer", meeting.ID, "declined")

	out = run(t, "--db", dbPath, "--json", "--as", "usr-bob", "meeting", "ls")
	var invites []types.MeetingInvite
	if err := json.Unmarshal([]byte(out), &invites); err != nil {
		t.Fatalf("decode invites output: %v", err)
	}
	if len(invites) != 1 || invites[0].JoinStatus != types.JoinStatusDeclined {
		t.Fatalf("unexpected invites: %+v", invites)
	}
}
