package db

import (
	"context"
	"errors"
	"testing"

	"github.com/adamavenir/parley/internal/types"
)

func TestMeetingInviteLog(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)
	ctx := context.Background()
	requireUser(t, db, "usr-alice", "Alice")
	requireUser(t, db, "usr-bob", "Bob")

	meeting, err := CreateMeeting(ctx, db, types.Meeting{Title: "Standup", CreatorID: "usr-alice", StartsAt: 500, CreatedAt: 100})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if meeting.ID == "" {
		t.Fatal("expected generated meeting id")
	}
	got, err := GetMeeting(ctx, db, meeting.ID)
	if err != nil || got == nil || got.Title != "Standup" {
		t.Fatalf("get meeting: %+v, %v", got, err)
	}
	if missing, err := GetMeeting(ctx, db, "mtg-ghost"); err != nil || missing != nil {
		t.Fatalf("expected missing meeting, got %+v, %v", missing, err)
	}

	if err := UpsertMeetingInvite(ctx, db, types.MeetingInvite{MeetingID: meeting.ID, UserID: "usr-bob", UpdatedAt: 1}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := SetJoinStatus(ctx, db, meeting.ID, "usr-bob", types.JoinStatusJoined, 2); err != nil {
		t.Fatalf("join: %v", err)
	}

	// A second invite resets the answer, one row per user.
	if err := UpsertMeetingInvite(ctx, db, types.MeetingInvite{MeetingID: meeting.ID, UserID: "usr-bob", UpdatedAt: 3}); err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	invites, err := GetMeetingInvites(ctx, db, meeting.ID)
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(invites) != 1 {
		t.Fatalf("expected one invite row, got %d", len(invites))
	}
	if invites[0].JoinStatus != types.JoinStatusInvited || invites[0].Role != types.MeetingRoleParticipant || invites[0].UpdatedAt != 3 {
		t.Fatalf("unexpected invite: %+v", invites[0])
	}

	mine, err := GetUserMeetingInvites(ctx, db, "usr-bob")
	if err != nil || len(mine) != 1 {
		t.Fatalf("user invites: %+v, %v", mine, err)
	}

	err = SetJoinStatus(ctx, db, meeting.ID, "usr-alice", types.JoinStatusJoined, 4)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for uninvited user, got %v", err)
	}
}
