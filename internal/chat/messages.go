package chat

import (
	"context"
	"errors"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// MarkRead marks one message read on behalf of a reader. Only the direct
// recipient, or a group member other than the sender, may do so.
func (s *Service) MarkRead(ctx context.Context, actorID, messageID string) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == actorID {
		return apperr.Forbidden("cannot mark your own message read")
	}
	if err := s.authorizeParticipant(ctx, actorID, msg); err != nil {
		return err
	}
	changed, err := db.SetReadState(ctx, s.db, messageID, types.ReadStateRead)
	if err != nil {
		return apperr.Internal("mark read", err)
	}
	if changed {
		s.refreshInbox(actorID, msg)
	}
	return nil
}

// MarkConversationRead marks everything counterpart sent ownerID as read.
func (s *Service) MarkConversationRead(ctx context.Context, ownerID string, counterpart types.Participant) (int64, error) {
	if counterpart.Kind() == types.ConversationGroup {
		member, err := s.dir.IsGroupMember(ctx, counterpart.ID(), ownerID)
		if err != nil {
			return 0, apperr.Internal("check membership", err)
		}
		if !member {
			return 0, apperr.Forbidden(ownerID + " is not a member of " + counterpart.ID())
		}
	}
	n, err := db.MarkConversationRead(ctx, s.db, ownerID, counterpart.ID(), counterpart.Kind())
	if err != nil {
		return 0, apperr.Internal("mark conversation read", err)
	}
	return n, nil
}

// ConversationMessages pages backwards through actorID's conversation with
// counterpart, rendered for actorID.
func (s *Service) ConversationMessages(ctx context.Context, actorID string, counterpart types.Participant, opts *types.MessageQueryOptions) ([]types.MessageView, error) {
	key, err := s.historyKey(ctx, actorID, counterpart)
	if err != nil || key == "" {
		return nil, err
	}

	messages, err := db.GetConversationMessages(ctx, s.db, key, opts)
	if err != nil {
		return nil, apperr.Internal("load messages", err)
	}

	parties := map[string]types.Party{}
	party := func(id string, kind types.ConversationKind) types.Party {
		if p, ok := parties[id]; ok {
			return p
		}
		p := types.Party{ID: id}
		if kind == types.ConversationGroup {
			if group, err := s.dir.Group(ctx, id); err == nil && group != nil {
				p = groupParty(*group)
			}
		} else if user, err := s.dir.User(ctx, id); err == nil && user != nil {
			p = userParty(*user)
		}
		parties[id] = p
		return p
	}

	views := make([]types.MessageView, 0, len(messages))
	for _, msg := range messages {
		text := ""
		if plain, err := s.enc.Decrypt(ctx, msg.Body); err == nil {
			text = string(plain)
		} else {
			s.logger.Warn("history message unreadable",
				zap.String("message", msg.ID), zap.Error(apperr.Decryption(err)))
		}

		targetID := msg.ConversationKey
		if msg.RecipientID != nil {
			targetID = *msg.RecipientID
		}
		var call *types.CallRecord
		if msg.Kind == types.MessageKindCall {
			call, _ = db.GetCallRecord(ctx, s.db, msg.ID)
		}
		views = append(views, buildView(
			msg,
			text,
			party(msg.SenderID, types.ConversationDirect),
			party(targetID, msg.ConversationKind),
			call,
			s.ResolveThread(ctx, msg, actorID),
			actorID,
		))
	}
	return views, nil
}

func (s *Service) historyKey(ctx context.Context, actorID string, counterpart types.Participant) (string, error) {
	if counterpart.Kind() == types.ConversationGroup {
		member, err := s.dir.IsGroupMember(ctx, counterpart.ID(), actorID)
		if err != nil {
			return "", apperr.Internal("check membership", err)
		}
		if !member {
			return "", apperr.Forbidden(actorID + " is not a member of " + counterpart.ID())
		}
		return counterpart.ID(), nil
	}
	key, err := db.GetDirectConversationKey(ctx, s.db, actorID, counterpart.ID())
	if err != nil {
		return "", apperr.Internal("lookup conversation key", err)
	}
	return key, nil
}

// SetFlags replaces the flags on a message the actor can see.
func (s *Service) SetFlags(ctx context.Context, actorID, messageID string, flags types.MessageFlags) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.authorizeParticipant(ctx, actorID, msg); err != nil {
		return err
	}
	if err := db.SetMessageFlags(ctx, s.db, messageID, flags); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("message " + messageID + " not found")
		}
		return apperr.Internal("set flags", err)
	}
	return nil
}

// DeleteMessage soft-deletes a message. Only its sender may delete it.
func (s *Service) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return apperr.Forbidden("only the sender can delete a message")
	}
	if err := db.SoftDeleteMessage(ctx, s.db, messageID, s.now().UnixMilli()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("message " + messageID + " not found")
		}
		return apperr.Internal("delete message", err)
	}
	return nil
}

// PurgeExpired soft-deletes messages past their expire_at.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := db.PurgeExpiredMessages(ctx, s.db, s.now().UnixMilli())
	if err != nil {
		return 0, apperr.Internal("purge expired", err)
	}
	if n > 0 {
		s.logger.Info("purged expired messages", zap.Int64("count", n))
	}
	return n, nil
}

// loadMessage returns a live message or a NotFound error.
func (s *Service) loadMessage(ctx context.Context, messageID string) (types.Message, error) {
	msg, err := db.GetMessage(ctx, s.db, messageID)
	if err != nil {
		return types.Message{}, apperr.Internal("load message", err)
	}
	if msg == nil || msg.DeletedAt != nil {
		return types.Message{}, apperr.NotFound("message " + messageID + " not found")
	}
	return *msg, nil
}

// authorizeParticipant allows the two parties of a direct message and the
// members of a group.
func (s *Service) authorizeParticipant(ctx context.Context, actorID string, msg types.Message) error {
	if msg.ConversationKind == types.ConversationGroup {
		member, err := s.dir.IsGroupMember(ctx, msg.ConversationKey, actorID)
		if err != nil {
			return apperr.Internal("check membership", err)
		}
		if !member {
			return apperr.Forbidden(actorID + " is not a member of " + msg.ConversationKey)
		}
		return nil
	}
	if msg.SenderID == actorID || (msg.RecipientID != nil && *msg.RecipientID == actorID) {
		return nil
	}
	return apperr.Forbidden(actorID + " is not part of this conversation")
}

// refreshInbox pushes the reader's updated row to their other devices.
func (s *Service) refreshInbox(readerID string, msg types.Message) {
	counterpartID := msg.SenderID
	if msg.ConversationKind == types.ConversationGroup {
		counterpartID = msg.ConversationKey
	}
	s.background(s.opts.BroadcastTimeout, func(ctx context.Context) {
		entries, err := db.GetIndexEntriesForOwner(ctx, s.db, readerID)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.CounterpartID != counterpartID {
				continue
			}
			summary, ok, err := s.summarize(ctx, readerID, entry)
			if err != nil || !ok {
				return
			}
			s.publish(ctx, realtime.UserChannel(readerID), realtime.Event{
				Type:            realtime.EventConversationSummary,
				State:           realtime.StateLastMessage,
				ConversationKey: entry.ConversationKey,
				Kind:            entry.Kind,
				Summary:         &summary,
			}, "")
			return
		}
	})
}
