package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/adamavenir/parley/internal/types"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaNotifierPublishesCall(t *testing.T) {
	writer := &recordingWriter{}
	fixed := time.UnixMilli(1700000000000)
	n := &KafkaNotifier{writer: writer, now: func() time.Time { return fixed }}

	err := n.SendCallNotification(context.Background(), types.Party{ID: "usr-bob", Name: "Bob", Email: "bob@example.com"}, "Alice")
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "usr-bob", string(msg.Key))

	var decoded CallNotification
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "call", decoded.Type)
	assert.Equal(t, "Alice", decoded.CallerName)
	assert.Equal(t, "bob@example.com", decoded.ToEmail)
	assert.Equal(t, fixed.UnixMilli(), decoded.SentAt)
}

func TestKafkaNotifierRequiresContact(t *testing.T) {
	n := &KafkaNotifier{writer: &recordingWriter{}, now: time.Now}
	err := n.SendCallNotification(context.Background(), types.Party{ID: "usr-bob"}, "Alice")
	assert.ErrorIs(t, err, ErrNoContact)
}

func TestKafkaNotifierWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	n := &KafkaNotifier{writer: &recordingWriter{err: boom}, now: time.Now}
	err := n.SendCallNotification(context.Background(), types.Party{ID: "usr-bob", Email: "b@x"}, "Alice")
	assert.ErrorIs(t, err, boom)
}

func TestKafkaNotifierPublishesMeetingInvitation(t *testing.T) {
	writer := &recordingWriter{}
	fixed := time.UnixMilli(1700000000000)
	n := &KafkaNotifier{writer: writer, now: func() time.Time { return fixed }}
	meeting := types.Meeting{ID: "mtg-1", Title: "Planning", CreatorID: "usr-alice", StartsAt: 1700000900000}

	err := n.SendMeetingInvitation(context.Background(), types.Party{ID: "usr-bob", Name: "Bob", Email: "bob@example.com"}, meeting, "Alice")
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "usr-bob", string(writer.messages[0].Key))

	var decoded MeetingInvitation
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, "meeting_invite", decoded.Type)
	assert.Equal(t, "mtg-1", decoded.MeetingID)
	assert.Equal(t, "Planning", decoded.MeetingTitle)
	assert.Equal(t, meeting.StartsAt, decoded.StartsAt)
	assert.Equal(t, "Alice", decoded.InviterName)
}

func TestKafkaNotifierInvitationNeedsEmail(t *testing.T) {
	writer := &recordingWriter{}
	n := &KafkaNotifier{writer: writer, now: time.Now}
	err := n.SendMeetingInvitation(context.Background(), types.Party{ID: "usr-bob", Phone: "+15550100"}, types.Meeting{ID: "mtg-1"}, "Alice")
	assert.ErrorIs(t, err, ErrNoContact)
	assert.Empty(t, writer.messages)
}
