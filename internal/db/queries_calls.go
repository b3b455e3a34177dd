package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adamavenir/parley/internal/types"
)

// CreateCallRecord links call metadata to a call message.
func CreateCallRecord(ctx context.Context, db DBTX, record types.CallRecord) (types.CallRecord, error) {
	if record.State == "" {
		record.State = types.CallStateInitiated
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO parley_call_records (message_id, caller_id, callee_id, conversation_kind, duration, call_state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.MessageID, record.CallerID, record.CalleeID, string(record.Kind), record.Duration, string(record.State))
	if err != nil {
		if isConstraintError(err) {
			return types.CallRecord{}, fmt.Errorf("call record for %s already exists: %w", record.MessageID, err)
		}
		return types.CallRecord{}, fmt.Errorf("insert call record: %w", err)
	}
	return record, nil
}

// GetCallRecord returns the call linked to messageID, or (nil, nil).
func GetCallRecord(ctx context.Context, db DBTX, messageID string) (*types.CallRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT message_id, caller_id, callee_id, conversation_kind, duration, call_state
		FROM parley_call_records WHERE message_id = ?
	`, messageID)
	var record types.CallRecord
	var kind, state string
	err := row.Scan(&record.MessageID, &record.CallerID, &record.CalleeID, &kind, &record.Duration, &state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Kind = types.ConversationKind(kind)
	record.State = types.CallState(state)
	return &record, nil
}

// UpdateCallRecord sets duration and state from the call lifecycle flow.
func UpdateCallRecord(ctx context.Context, db DBTX, messageID string, duration int64, state types.CallState) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_call_records SET duration = ?, call_state = ? WHERE message_id = ?",
		duration, string(state), messageID,
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

// CountCallRecords returns how many call records reference messageID.
func CountCallRecords(ctx context.Context, db DBTX, messageID string) (int, error) {
	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parley_call_records WHERE message_id = ?", messageID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
