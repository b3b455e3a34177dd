package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adamavenir/parley/internal/types"
)

const indexColumns = `owner_id, counterpart_id, conversation_key, conversation_kind, message_id, message_seq, message_created_at, has_attachment`

// upsertIndexSQL only moves the pointer forward in (created_at, seq) order,
// so a late or retried write never regresses an owner's latest message.
const upsertIndexSQL = `
	INSERT INTO parley_conversation_index (` + indexColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(owner_id, counterpart_id, conversation_key) DO UPDATE SET
	  conversation_kind = excluded.conversation_kind,
	  message_id = excluded.message_id,
	  message_seq = excluded.message_seq,
	  message_created_at = excluded.message_created_at,
	  has_attachment = excluded.has_attachment
	WHERE excluded.message_created_at > parley_conversation_index.message_created_at
	   OR (excluded.message_created_at = parley_conversation_index.message_created_at
	       AND excluded.message_seq > parley_conversation_index.message_seq)
`

// UpsertIndexEntry creates or advances a single index entry.
func UpsertIndexEntry(ctx context.Context, db DBTX, entry types.ConversationIndexEntry) error {
	_, err := db.ExecContext(ctx, upsertIndexSQL,
		entry.OwnerID,
		entry.CounterpartID,
		entry.ConversationKey,
		string(entry.Kind),
		entry.MessageID,
		entry.MessageSeq,
		entry.MessageCreatedAt,
		boolToInt(entry.HasAttachment),
	)
	if err != nil {
		return fmt.Errorf("upsert index %s/%s: %w", entry.OwnerID, entry.CounterpartID, err)
	}
	return nil
}

// TouchIndex records message as the latest in its conversation. Direct
// messages update both participants' entries; group messages update the
// sender's entry for the group. Call it in the same transaction as the insert.
func TouchIndex(ctx context.Context, db DBTX, message types.Message) error {
	base := types.ConversationIndexEntry{
		ConversationKey:  message.ConversationKey,
		Kind:             message.ConversationKind,
		MessageID:        message.ID,
		MessageSeq:       message.Seq,
		MessageCreatedAt: message.CreatedAt,
		HasAttachment:    message.Kind == types.MessageKindFile,
	}

	switch message.ConversationKind {
	case types.ConversationDirect:
		if message.RecipientID == nil {
			return fmt.Errorf("direct message %s has no recipient", message.ID)
		}
		senderEntry := base
		senderEntry.OwnerID = message.SenderID
		senderEntry.CounterpartID = *message.RecipientID
		if err := UpsertIndexEntry(ctx, db, senderEntry); err != nil {
			return err
		}
		recipientEntry := base
		recipientEntry.OwnerID = *message.RecipientID
		recipientEntry.CounterpartID = message.SenderID
		return UpsertIndexEntry(ctx, db, recipientEntry)
	case types.ConversationGroup:
		entry := base
		entry.OwnerID = message.SenderID
		entry.CounterpartID = message.ConversationKey
		return UpsertIndexEntry(ctx, db, entry)
	default:
		return fmt.Errorf("unknown conversation kind %q", message.ConversationKind)
	}
}

// GetIndexEntry returns a single entry, or (nil, nil) if absent.
func GetIndexEntry(ctx context.Context, db DBTX, ownerID, counterpartID, conversationKey string) (*types.ConversationIndexEntry, error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM parley_conversation_index WHERE owner_id = ? AND counterpart_id = ? AND conversation_key = ?",
		indexColumns,
	), ownerID, counterpartID, conversationKey)
	entry, err := scanIndexEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetIndexEntriesForOwner returns every entry visible in owner's inbox,
// newest first: entries the owner holds plus group entries for groups the
// owner belongs to. Entries are not deduplicated.
func GetIndexEntriesForOwner(ctx context.Context, db DBTX, ownerID string) ([]types.ConversationIndexEntry, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM parley_conversation_index
		WHERE owner_id = ?
		   OR (conversation_kind = 'group'
		       AND counterpart_id IN (SELECT group_id FROM parley_group_members WHERE user_id = ?))
		ORDER BY message_created_at DESC, message_seq DESC
	`, indexColumns), ownerID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.ConversationIndexEntry
	for rows.Next() {
		entry, err := scanIndexEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanIndexEntry(scanner interface{ Scan(dest ...any) error }) (types.ConversationIndexEntry, error) {
	var entry types.ConversationIndexEntry
	var kind string
	var hasAttachment int
	if err := scanner.Scan(
		&entry.OwnerID,
		&entry.CounterpartID,
		&entry.ConversationKey,
		&kind,
		&entry.MessageID,
		&entry.MessageSeq,
		&entry.MessageCreatedAt,
		&hasAttachment,
	); err != nil {
		return types.ConversationIndexEntry{}, err
	}
	entry.Kind = types.ConversationKind(kind)
	entry.HasAttachment = hasAttachment != 0
	return entry, nil
}
