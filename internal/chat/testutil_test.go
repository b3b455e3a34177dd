package chat

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/types"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeEncrypter prefixes instead of sealing so tests can read stored bodies.
type fakeEncrypter struct {
	mu         sync.Mutex
	failSeal   bool
	failOpen   bool
	sealCalled int
}

func (e *fakeEncrypter) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sealCalled++
	if e.failSeal {
		return "", errBoom
	}
	return "sealed:" + string(plaintext), nil
}

func (e *fakeEncrypter) Decrypt(_ context.Context, ciphertext string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOpen || !strings.HasPrefix(ciphertext, "sealed:") {
		return nil, errBoom
	}
	return []byte(strings.TrimPrefix(ciphertext, "sealed:")), nil
}

// fakeTranslator tags text with the target language.
type fakeTranslator struct {
	fail bool
}

func (t fakeTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	if t.fail {
		return "", errBoom
	}
	if source == target {
		return text, nil
	}
	return "[" + target + "] " + text, nil
}

type published struct {
	Channel string
	Event   realtime.Event
	Exclude string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, event realtime.Event, exclude string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errBoom
	}
	p.events = append(p.events, published{Channel: channel, Event: event, Exclude: exclude})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []types.Party
	callers    []string
	invited    []types.Party
	meetings   []string
}

func (n *recordingNotifier) SendCallNotification(_ context.Context, recipient types.Party, callerName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipient)
	n.callers = append(n.callers, callerName)
	return nil
}

func (n *recordingNotifier) SendMeetingInvitation(_ context.Context, recipient types.Party, meeting types.Meeting, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invited = append(n.invited, recipient)
	n.meetings = append(n.meetings, meeting.ID)
	return nil
}

func (n *recordingNotifier) invitations() []types.Party {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.Party(nil), n.invited...)
}

func (n *recordingNotifier) sent() []types.Party {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.Party(nil), n.recipients...)
}

type testEnv struct {
	conn     *sql.DB
	svc      *Service
	enc      *fakeEncrypter
	pub      *recordingPublisher
	notifier *recordingNotifier
	clock    atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.OpenDatabase(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.InitSchema(conn))

	env := &testEnv{
		conn:     conn,
		enc:      &fakeEncrypter{},
		pub:      &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	env.svc = NewService(conn, Deps{
		Directory:  db.Directory{DB: conn},
		Encrypter:  env.enc,
		Translator: fakeTranslator{},
		Publisher:  env.pub,
		Notifier:   env.notifier,
	}, Options{})
	env.clock.Store(1_700_000_000_000)
	env.svc.now = func() time.Time {
		return time.UnixMilli(env.clock.Add(1))
	}
	return env
}

func (env *testEnv) user(t *testing.T, id, name, lang string) types.User {
	t.Helper()
	user, err := db.CreateUser(context.Background(), env.conn, types.User{
		ID:           id,
		Name:         name,
		Email:        id + "@example.com",
		ChatLanguage: lang,
		CreatedAt:    1,
	})
	require.NoError(t, err)
	return user
}

func (env *testEnv) group(t *testing.T, id, name string, members ...string) types.Group {
	t.Helper()
	ctx := context.Background()
	group, err := db.CreateGroup(ctx, env.conn, types.Group{ID: id, Name: name, CreatedAt: 1})
	require.NoError(t, err)
	for _, member := range members {
		require.NoError(t, db.AddGroupMember(ctx, env.conn, id, member, 1))
	}
	return group
}

func (env *testEnv) send(t *testing.T, from string, to types.Participant, body string) types.SubmitResult {
	t.Helper()
	result, err := env.svc.Submit(context.Background(), SubmitRequest{
		ActorID: from,
		Target:  to,
		Body:    body,
		Kind:    types.MessageKindText,
	})
	require.NoError(t, err)
	return result
}

func (env *testEnv) inbox(t *testing.T, owner string) []types.ConversationSummary {
	t.Helper()
	var summaries []types.ConversationSummary
	for summary, err := range env.svc.ListConversations(context.Background(), owner) {
		require.NoError(t, err)
		summaries = append(summaries, summary)
	}
	return summaries
}

func (env *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, env.conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func strPtr(value string) *string {
	return &value
}
