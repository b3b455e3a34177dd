package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adamavenir/parley/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// CallNotification is the event consumed by the mail worker.
type CallNotification struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	ToName      string `json:"to_name"`
	ToEmail     string `json:"to_email"`
	ToPhone     string `json:"to_phone,omitempty"`
	CallerName  string `json:"caller_name"`
	SentAt      int64  `json:"sent_at"`
}

// MeetingInvitation is the event the mail worker turns into an invite email.
type MeetingInvitation struct {
	Type         string `json:"type"`
	RecipientID  string `json:"recipient_id"`
	ToName       string `json:"to_name"`
	ToEmail      string `json:"to_email"`
	MeetingID    string `json:"meeting_id"`
	MeetingTitle string `json:"meeting_title"`
	StartsAt     int64  `json:"starts_at"`
	InviterName  string `json:"inviter_name"`
	SentAt       int64  `json:"sent_at"`
}

var ErrNoContact = errors.New("recipient has no contact address")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes call notifications to a Kafka topic.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier creates a producer for topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaNotifier{writer: w, now: time.Now}
}

func (n *KafkaNotifier) SendCallNotification(ctx context.Context, recipient types.Party, callerName string) error {
	if recipient.Email == "" && recipient.Phone == "" {
		return fmt.Errorf("notify %s: %w", recipient.ID, ErrNoContact)
	}
	return n.publish(ctx, recipient.ID, CallNotification{
		Type:        "call",
		RecipientID: recipient.ID,
		ToName:      recipient.Name,
		ToEmail:     recipient.Email,
		ToPhone:     recipient.Phone,
		CallerName:  callerName,
		SentAt:      n.now().UnixMilli(),
	})
}

// SendMeetingInvitation emails an invitee. Invitations go by email only.
func (n *KafkaNotifier) SendMeetingInvitation(ctx context.Context, recipient types.Party, meeting types.Meeting, inviterName string) error {
	if recipient.Email == "" {
		return fmt.Errorf("invite %s: %w", recipient.ID, ErrNoContact)
	}
	return n.publish(ctx, recipient.ID, MeetingInvitation{
		Type:         "meeting_invite",
		RecipientID:  recipient.ID,
		ToName:       recipient.Name,
		ToEmail:      recipient.Email,
		MeetingID:    meeting.ID,
		MeetingTitle: meeting.Title,
		StartsAt:     meeting.StartsAt,
		InviterName:  inviterName,
		SentAt:       n.now().UnixMilli(),
	})
}

// publish writes one event keyed by recipient so a user's events stay ordered.
func (n *KafkaNotifier) publish(ctx context.Context, recipientID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(recipientID), Value: payload, Time: n.now()}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier records notifications in the log only.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) SendCallNotification(_ context.Context, recipient types.Party, callerName string) error {
	if n.Logger != nil {
		n.Logger.Info("call notification",
			zap.String("recipient", recipient.ID),
			zap.String("caller", callerName))
	}
	return nil
}

func (n LogNotifier) SendMeetingInvitation(_ context.Context, recipient types.Party, meeting types.Meeting, inviterName string) error {
	if n.Logger != nil {
		n.Logger.Info("meeting invitation",
			zap.String("recipient", recipient.ID),
			zap.String("meeting", meeting.ID),
			zap.String("inviter", inviterName))
	}
	return nil
}

func (LogNotifier) Close() error { return nil }
