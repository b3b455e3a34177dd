package db

import (
	"context"

	"github.com/adamavenir/parley/internal/types"
)

// unreadPredicate selects messages owner has not read in the conversation
// with counterpart. Direct chats match on the sender/recipient pair so that
// every key ever used between the two counts. Group chats match the group key
// and exclude the owner's own messages.
func unreadPredicate(ownerID, counterpartID string, kind types.ConversationKind) (string, []any) {
	if kind == types.ConversationGroup {
		return `conversation_kind = 'group' AND conversation_key = ? AND sender_id != ?
		  AND read_state = 'unread' AND deleted_at IS NULL`, []any{counterpartID, ownerID}
	}
	return `conversation_kind = 'direct' AND sender_id = ? AND recipient_id = ?
	  AND read_state = 'unread' AND deleted_at IS NULL`, []any{counterpartID, ownerID}
}

// CountUnread returns the exact unread count over the full history of the
// conversation between owner and counterpart.
func CountUnread(ctx context.Context, db DBTX, ownerID, counterpartID string, kind types.ConversationKind) (int, error) {
	predicate, args := unreadPredicate(ownerID, counterpartID, kind)
	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parley_messages WHERE "+predicate, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkConversationRead flips every unread message counted by CountUnread.
func MarkConversationRead(ctx context.Context, db DBTX, ownerID, counterpartID string, kind types.ConversationKind) (int64, error) {
	predicate, args := unreadPredicate(ownerID, counterpartID, kind)
	result, err := db.ExecContext(ctx, "UPDATE parley_messages SET read_state = 'read' WHERE "+predicate, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
