package chat

import (
	"context"
	"iter"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// ListConversations yields ownerID's inbox newest first, one row per
// counterpart. Rows whose counterpart no longer exists are skipped. The
// sequence is lazy and can be ranged over more than once; each pass reads
// the current state.
func (s *Service) ListConversations(ctx context.Context, ownerID string) iter.Seq2[types.ConversationSummary, error] {
	return func(yield func(types.ConversationSummary, error) bool) {
		entries, err := db.GetIndexEntriesForOwner(ctx, s.db, ownerID)
		if err != nil {
			yield(types.ConversationSummary{}, apperr.Internal("list conversations", err))
			return
		}

		seen := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			if entry.CounterpartID == ownerID {
				continue
			}
			if _, dup := seen[entry.CounterpartID]; dup {
				continue
			}
			seen[entry.CounterpartID] = struct{}{}

			summary, ok, err := s.summarize(ctx, ownerID, entry)
			if err != nil {
				yield(types.ConversationSummary{}, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(summary, nil) {
				return
			}
		}
	}
}

// CountUnread returns how many messages from counterpart ownerID has not read.
func (s *Service) CountUnread(ctx context.Context, ownerID string, counterpart types.Participant) (int, error) {
	count, err := db.CountUnread(ctx, s.db, ownerID, counterpart.ID(), counterpart.Kind())
	if err != nil {
		return 0, apperr.Internal("count unread", err)
	}
	return count, nil
}

func (s *Service) summaryFor(ctx context.Context, ownerID, counterpartID, key string) (types.ConversationSummary, bool, error) {
	entry, err := db.GetIndexEntry(ctx, s.db, ownerID, counterpartID, key)
	if err != nil {
		return types.ConversationSummary{}, false, apperr.Internal("load index entry", err)
	}
	if entry == nil {
		return types.ConversationSummary{}, false, nil
	}
	return s.summarize(ctx, ownerID, *entry)
}

// summarize renders one index entry for ownerID. ok is false when the
// counterpart has been deleted.
func (s *Service) summarize(ctx context.Context, ownerID string, entry types.ConversationIndexEntry) (types.ConversationSummary, bool, error) {
	var name string
	if entry.Kind == types.ConversationGroup {
		group, err := s.dir.Group(ctx, entry.CounterpartID)
		if err != nil {
			return types.ConversationSummary{}, false, apperr.Internal("load group", err)
		}
		if group == nil {
			return types.ConversationSummary{}, false, nil
		}
		name = group.Name
	} else {
		user, err := s.dir.User(ctx, entry.CounterpartID)
		if err != nil {
			return types.ConversationSummary{}, false, apperr.Internal("load user", err)
		}
		if user == nil {
			return types.ConversationSummary{}, false, nil
		}
		name = user.Name
	}

	unread, err := db.CountUnread(ctx, s.db, ownerID, entry.CounterpartID, entry.Kind)
	if err != nil {
		return types.ConversationSummary{}, false, apperr.Internal("count unread", err)
	}

	return types.ConversationSummary{
		MessageID:       entry.MessageID,
		ConversationKey: entry.ConversationKey,
		CounterpartID:   entry.CounterpartID,
		CounterpartName: name,
		Kind:            entry.Kind,
		HasAttachment:   entry.HasAttachment,
		Unread:          unread,
		LastMessage:     s.lastMessageText(ctx, entry.MessageID),
		LastMessageAt:   entry.MessageCreatedAt,
	}, true, nil
}

// lastMessageText is the inbox preview. Deleted or unreadable messages
// preview as empty.
func (s *Service) lastMessageText(ctx context.Context, messageID string) string {
	msg, err := db.GetMessage(ctx, s.db, messageID)
	if err != nil || msg == nil || msg.DeletedAt != nil {
		return ""
	}
	plain, err := s.enc.Decrypt(ctx, msg.Body)
	if err != nil {
		s.logger.Warn("inbox preview unreadable",
			zap.String("message", messageID), zap.Error(apperr.Decryption(err)))
		return ""
	}
	return string(plain)
}
