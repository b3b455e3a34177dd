package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/adamavenir/parley/internal/types"
)

const messageColumns = `seq, id, sender_id, recipient_id, conversation_key, conversation_kind, kind, file_kind, body, read_state, important, forwarded, starred, view_once, expire_at, thread_parent_id, tag_user_id, source_language, created_at, deleted_at`

// CreateMessage inserts a message and returns it with its id and seq set.
func CreateMessage(ctx context.Context, db DBTX, message types.Message) (types.Message, error) {
	if message.ID == "" {
		id, err := generateUniqueID(ctx, db, "parley_messages", "msg")
		if err != nil {
			return types.Message{}, err
		}
		message.ID = id
	}
	if message.ReadState == "" {
		message.ReadState = types.ReadStateUnread
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO parley_messages (
		  id, sender_id, recipient_id, conversation_key, conversation_kind, kind, file_kind, body,
		  read_state, important, forwarded, starred, view_once, expire_at, thread_parent_id,
		  tag_user_id, source_language, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		message.ID,
		message.SenderID,
		nullableValue(message.RecipientID),
		message.ConversationKey,
		string(message.ConversationKind),
		string(message.Kind),
		nullableValue(message.FileKind),
		message.Body,
		string(message.ReadState),
		boolToInt(message.Flags.Important),
		boolToInt(message.Flags.Forwarded),
		boolToInt(message.Flags.Starred),
		boolToInt(message.Flags.ViewOnce),
		nullableValue(message.ExpireAt),
		nullableValue(message.ThreadParentID),
		nullableValue(message.TagUserID),
		message.SourceLanguage,
		message.CreatedAt,
	)
	if err != nil {
		return types.Message{}, fmt.Errorf("insert message: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return types.Message{}, err
	}
	message.Seq = seq
	return message, nil
}

// GetMessage returns a message by id, including soft-deleted rows.
// A missing message yields (nil, nil).
func GetMessage(ctx context.Context, db DBTX, messageID string) (*types.Message, error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM parley_messages WHERE id = ?", messageColumns), messageID)
	message, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetConversationMessages pages backwards through a conversation, newest first.
func GetConversationMessages(ctx context.Context, db DBTX, conversationKey string, options *types.MessageQueryOptions) ([]types.Message, error) {
	conditions := []string{"conversation_key = ?", "deleted_at IS NULL"}
	args := []any{conversationKey}

	limit := 50
	if options != nil {
		if options.Limit > 0 {
			limit = options.Limit
		}
		if options.Before != nil {
			clause, clauseArgs := buildCursorCondition("", "<", options.Before)
			conditions = append(conditions, clause)
			args = append(args, clauseArgs...)
		}
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		"SELECT %s FROM parley_messages WHERE %s ORDER BY created_at DESC, seq DESC LIMIT ?",
		messageColumns, strings.Join(conditions, " AND "),
	)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetDirectConversationKey returns the key of the most recent direct
// conversation between a and b, or "" if they have never exchanged messages.
func GetDirectConversationKey(ctx context.Context, db DBTX, a, b string) (string, error) {
	row := db.QueryRowContext(ctx, `
		SELECT conversation_key FROM parley_conversation_index
		WHERE owner_id = ? AND counterpart_id = ? AND conversation_kind = 'direct'
		ORDER BY message_created_at DESC, message_seq DESC
		LIMIT 1
	`, a, b)
	var key string
	err := row.Scan(&key)
	if err == nil {
		return key, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	row = db.QueryRowContext(ctx, `
		SELECT conversation_key FROM parley_messages
		WHERE conversation_kind = 'direct'
		  AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, a, b, b, a)
	err = row.Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// DirectKeyUsedBetween reports whether key already groups messages exchanged
// by exactly the pair {a, b}.
func DirectKeyUsedBetween(ctx context.Context, db DBTX, key, a, b string) (bool, error) {
	row := db.QueryRowContext(ctx, `
		SELECT
		  SUM(CASE WHEN (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?) THEN 1 ELSE 0 END),
		  COUNT(*)
		FROM parley_messages
		WHERE conversation_key = ? AND conversation_kind = 'direct'
	`, a, b, b, a, key)
	var matching sql.NullInt64
	var total int64
	if err := row.Scan(&matching, &total); err != nil {
		return false, err
	}
	return total > 0 && matching.Int64 == total, nil
}

// SetReadState flips the read flag on one message.
func SetReadState(ctx context.Context, db DBTX, messageID string, state types.ReadState) (bool, error) {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_messages SET read_state = ? WHERE id = ? AND read_state != ?",
		string(state), messageID, string(state),
	)
	if err != nil {
		return false, err
	}
	return expectOneRow(result)
}

// SetMessageFlags replaces the boolean flags on a message.
func SetMessageFlags(ctx context.Context, db DBTX, messageID string, flags types.MessageFlags) error {
	result, err := db.ExecContext(ctx, `
		UPDATE parley_messages
		SET important = ?, forwarded = ?, starred = ?, view_once = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		boolToInt(flags.Important),
		boolToInt(flags.Forwarded),
		boolToInt(flags.Starred),
		boolToInt(flags.ViewOnce),
		messageID,
	)
	if err != nil {
		return err
	}
	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteMessage marks a message deleted. Index pointers keep referencing it.
func SoftDeleteMessage(ctx context.Context, db DBTX, messageID string, deletedAt int64) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_messages SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		deletedAt, messageID,
	)
	if err != nil {
		return err
	}
	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredMessages soft-deletes messages whose expire_at has passed.
func PurgeExpiredMessages(ctx context.Context, db DBTX, now int64) (int64, error) {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_messages SET deleted_at = ? WHERE expire_at IS NOT NULL AND expire_at <= ? AND deleted_at IS NULL",
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type messageRow struct {
	Seq              int64
	ID               string
	SenderID         string
	RecipientID      sql.NullString
	ConversationKey  string
	ConversationKind string
	Kind             string
	FileKind         sql.NullString
	Body             string
	ReadState        string
	Important        int
	Forwarded        int
	Starred          int
	ViewOnce         int
	ExpireAt         sql.NullInt64
	ThreadParentID   sql.NullString
	TagUserID        sql.NullString
	SourceLanguage   string
	CreatedAt        int64
	DeletedAt        sql.NullInt64
}

func (row messageRow) toMessage() types.Message {
	return types.Message{
		ID:               row.ID,
		Seq:              row.Seq,
		SenderID:         row.SenderID,
		RecipientID:      nullStringPtr(row.RecipientID),
		ConversationKey:  row.ConversationKey,
		ConversationKind: types.ConversationKind(row.ConversationKind),
		Kind:             types.MessageKind(row.Kind),
		FileKind:         nullStringPtr(row.FileKind),
		Body:             row.Body,
		ReadState:        types.ReadState(row.ReadState),
		Flags: types.MessageFlags{
			Important: row.Important != 0,
			Forwarded: row.Forwarded != 0,
			Starred:   row.Starred != 0,
			ViewOnce:  row.ViewOnce != 0,
		},
		ExpireAt:       nullIntPtr(row.ExpireAt),
		ThreadParentID: nullStringPtr(row.ThreadParentID),
		TagUserID:      nullStringPtr(row.TagUserID),
		SourceLanguage: row.SourceLanguage,
		CreatedAt:      row.CreatedAt,
		DeletedAt:      nullIntPtr(row.DeletedAt),
	}
}

func buildCursorCondition(prefix, op string, cursor *types.MessageCursor) (string, []any) {
	createdAt := prefix + "created_at"
	seq := prefix + "seq"
	clause := fmt.Sprintf("(%s %s ? OR (%s = ? AND %s %s ?))", createdAt, op, createdAt, seq, op)
	return clause, []any{cursor.CreatedAt, cursor.CreatedAt, cursor.Seq}
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var messages []types.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func scanMessage(scanner interface{ Scan(dest ...any) error }) (types.Message, error) {
	var row messageRow
	if err := scanner.Scan(
		&row.Seq,
		&row.ID,
		&row.SenderID,
		&row.RecipientID,
		&row.ConversationKey,
		&row.ConversationKind,
		&row.Kind,
		&row.FileKind,
		&row.Body,
		&row.ReadState,
		&row.Important,
		&row.Forwarded,
		&row.Starred,
		&row.ViewOnce,
		&row.ExpireAt,
		&row.ThreadParentID,
		&row.TagUserID,
		&row.SourceLanguage,
		&row.CreatedAt,
		&row.DeletedAt,
	); err != nil {
		return types.Message{}, err
	}
	return row.toMessage(), nil
}
