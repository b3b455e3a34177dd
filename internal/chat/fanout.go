package chat

import (
	"context"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// fanOut publishes the committed message, then the refreshed inbox row.
// Failures are logged and counted; the message is already durable.
func (s *Service) fanOut(ctx context.Context, msg types.Message, view types.MessageView, sender, receiver types.Party, excludeConnID string) {
	var channel string
	if msg.ConversationKind == types.ConversationGroup {
		channel = realtime.GroupChannel(msg.ConversationKey)
	} else {
		channel = realtime.UserChannel(receiver.ID)
	}
	s.publish(ctx, channel, realtime.Event{
		Type:            realtime.EventMessage,
		State:           realtime.StateNewMessage,
		ConversationKey: msg.ConversationKey,
		Kind:            msg.ConversationKind,
		Sender:          &sender,
		Receiver:        &receiver,
		Message:         &view,
	}, excludeConnID)

	// Direct: the recipient's row for the sender. Group: the sender's own row
	// for the group, delivered to every device of the sender.
	ownerID, counterpartID := receiver.ID, sender.ID
	if msg.ConversationKind == types.ConversationGroup {
		ownerID, counterpartID = sender.ID, msg.ConversationKey
	}
	summary, ok, err := s.summaryFor(ctx, ownerID, counterpartID, msg.ConversationKey)
	if err != nil {
		s.logger.Warn("summary unavailable for broadcast",
			zap.String("message", msg.ID), zap.Error(err))
		metrics.BroadcastFailures.WithLabelValues(realtime.EventConversationSummary).Inc()
		return
	}
	if !ok {
		return
	}
	s.publish(ctx, realtime.UserChannel(ownerID), realtime.Event{
		Type:            realtime.EventConversationSummary,
		State:           realtime.StateLastMessage,
		ConversationKey: msg.ConversationKey,
		Kind:            msg.ConversationKind,
		Sender:          &sender,
		Receiver:        &receiver,
		Summary:         &summary,
	}, "")
}

func (s *Service) publish(ctx context.Context, channel string, event realtime.Event, excludeConnID string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, channel, event, excludeConnID); err != nil {
		s.logger.Warn("broadcast failed",
			zap.String("event", event.Type),
			zap.Error(apperr.Broadcast(channel, err)))
		metrics.BroadcastFailures.WithLabelValues(event.Type).Inc()
	}
}
