package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adamavenir/parley/internal/types"
)

const inviteColumns = `meeting_id, user_id, join_status, role, updated_at`

// CreateMeeting schedules a meeting. An empty ID is generated.
func CreateMeeting(ctx context.Context, db DBTX, meeting types.Meeting) (types.Meeting, error) {
	if meeting.ID == "" {
		id, err := generateUniqueID(ctx, db, "parley_meetings", "mtg")
		if err != nil {
			return types.Meeting{}, err
		}
		meeting.ID = id
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO parley_meetings (id, title, creator_id, starts_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, meeting.ID, meeting.Title, meeting.CreatorID, meeting.StartsAt, meeting.CreatedAt)
	if err != nil {
		if isConstraintError(err) {
			return types.Meeting{}, fmt.Errorf("meeting %s: %w", meeting.ID, ErrDuplicate)
		}
		return types.Meeting{}, fmt.Errorf("insert meeting: %w", err)
	}
	return meeting, nil
}

// GetMeeting returns a meeting, or (nil, nil) if it does not exist.
func GetMeeting(ctx context.Context, db DBTX, meetingID string) (*types.Meeting, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, title, creator_id, starts_at, created_at FROM parley_meetings WHERE id = ?", meetingID)
	var meeting types.Meeting
	err := row.Scan(&meeting.ID, &meeting.Title, &meeting.CreatorID, &meeting.StartsAt, &meeting.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

// UpsertMeetingInvite writes one invite log row. Re-inviting a user resets
// their status and role to the new values.
func UpsertMeetingInvite(ctx context.Context, db DBTX, invite types.MeetingInvite) error {
	if invite.JoinStatus == "" {
		invite.JoinStatus = types.JoinStatusInvited
	}
	if invite.Role == "" {
		invite.Role = types.MeetingRoleParticipant
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO parley_meeting_invites (meeting_id, user_id, join_status, role, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(meeting_id, user_id) DO UPDATE SET
		  join_status = excluded.join_status,
		  role = excluded.role,
		  updated_at = excluded.updated_at
	`, invite.MeetingID, invite.UserID, string(invite.JoinStatus), string(invite.Role), invite.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert meeting invite: %w", err)
	}
	return nil
}

// GetMeetingInvite returns one user's invite, or (nil, nil).
func GetMeetingInvite(ctx context.Context, db DBTX, meetingID, userID string) (*types.MeetingInvite, error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM parley_meeting_invites WHERE meeting_id = ? AND user_id = ?", inviteColumns,
	), meetingID, userID)
	invite, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// SetJoinStatus records an invitee's answer.
func SetJoinStatus(ctx context.Context, db DBTX, meetingID, userID string, status types.JoinStatus, updatedAt int64) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_meeting_invites SET join_status = ?, updated_at = ? WHERE meeting_id = ? AND user_id = ?",
		string(status), updatedAt, meetingID, userID,
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

// GetMeetingInvites lists a meeting's invite log by user id.
func GetMeetingInvites(ctx context.Context, db DBTX, meetingID string) ([]types.MeetingInvite, error) {
	return queryInvites(ctx, db, fmt.Sprintf(
		"SELECT %s FROM parley_meeting_invites WHERE meeting_id = ? ORDER BY user_id", inviteColumns,
	), meetingID)
}

// GetUserMeetingInvites lists a user's invites, most recently updated first.
func GetUserMeetingInvites(ctx context.Context, db DBTX, userID string) ([]types.MeetingInvite, error) {
	return queryInvites(ctx, db, fmt.Sprintf(
		"SELECT %s FROM parley_meeting_invites WHERE user_id = ? ORDER BY updated_at DESC, meeting_id", inviteColumns,
	), userID)
}

func queryInvites(ctx context.Context, db DBTX, query string, args ...any) ([]types.MeetingInvite, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []types.MeetingInvite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invites, nil
}

func scanInvite(scanner interface{ Scan(dest ...any) error }) (types.MeetingInvite, error) {
	var invite types.MeetingInvite
	var status, role string
	if err := scanner.Scan(&invite.MeetingID, &invite.UserID, &status, &role, &invite.UpdatedAt); err != nil {
		return types.MeetingInvite{}, err
	}
	invite.JoinStatus = types.JoinStatus(status)
	invite.Role = types.MeetingRole(role)
	return invite, nil
}
