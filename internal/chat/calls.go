package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

func (s *Service) recordCall(ctx context.Context, tx *sql.Tx, msg types.Message, req SubmitRequest) (types.CallRecord, error) {
	return db.CreateCallRecord(ctx, tx, types.CallRecord{
		MessageID: msg.ID,
		CallerID:  msg.SenderID,
		CalleeID:  req.Target.ID(),
		Kind:      msg.ConversationKind,
		Duration:  req.CallDuration,
		State:     req.CallState,
	})
}

// UpdateCall records the outcome of a call. Either party of a direct call,
// or any member of the group, may report it.
func (s *Service) UpdateCall(ctx context.Context, actorID, messageID string, duration int64, state types.CallState) (types.CallRecord, error) {
	if !state.Valid() {
		return types.CallRecord{}, apperr.Validationf("unknown call state %q", state)
	}
	if duration < 0 {
		return types.CallRecord{}, apperr.Validation("call duration cannot be negative")
	}
	record, err := db.GetCallRecord(ctx, s.db, messageID)
	if err != nil {
		return types.CallRecord{}, apperr.Internal("load call", err)
	}
	if record == nil {
		return types.CallRecord{}, apperr.NotFound("call " + messageID + " not found")
	}
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return types.CallRecord{}, err
	}
	if err := s.authorizeParticipant(ctx, actorID, msg); err != nil {
		return types.CallRecord{}, err
	}

	if err := db.UpdateCallRecord(ctx, s.db, messageID, duration, state); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.CallRecord{}, apperr.NotFound("call " + messageID + " not found")
		}
		return types.CallRecord{}, apperr.Internal("update call", err)
	}
	record.Duration = duration
	record.State = state
	return *record, nil
}

// notifyCall alerts the callee, or every group member but the caller.
func (s *Service) notifyCall(ctx context.Context, call types.CallRecord, caller types.User) {
	if s.notifier == nil {
		return
	}

	var recipients []types.Party
	switch call.Kind {
	case types.ConversationGroup:
		members, err := s.dir.GroupMembers(ctx, call.CalleeID)
		if err != nil {
			s.logger.Warn("call notification skipped", zap.String("group", call.CalleeID), zap.Error(err))
			metrics.NotificationFailures.Inc()
			return
		}
		for _, member := range members {
			if member.ID != caller.ID {
				recipients = append(recipients, userParty(member))
			}
		}
	default:
		callee, err := s.dir.User(ctx, call.CalleeID)
		if err != nil || callee == nil {
			s.logger.Warn("call notification skipped", zap.String("callee", call.CalleeID), zap.Error(err))
			metrics.NotificationFailures.Inc()
			return
		}
		recipients = append(recipients, userParty(*callee))
	}

	for _, recipient := range recipients {
		if err := s.notifier.SendCallNotification(ctx, recipient, caller.Name); err != nil {
			s.logger.Warn("call notification failed",
				zap.String("message", call.MessageID),
				zap.String("recipient", recipient.ID),
				zap.Error(err))
			metrics.NotificationFailures.Inc()
		}
	}
}
