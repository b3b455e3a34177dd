package chat

import (
	"context"
	"testing"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleMeetingLogsCreator(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "usr-alice", "Alice", "en")
	ctx := context.Background()

	meeting, err := env.svc.ScheduleMeeting(ctx, "usr-alice", "  Planning ", 1_800_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, "Planning", meeting.Title)
	assert.Equal(t, "usr-alice", meeting.CreatorID)

	invites, err := env.svc.MeetingInvites(ctx, "usr-alice")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, types.MeetingRoleCreator, invites[0].Role)
	assert.Equal(t, types.JoinStatusJoined, invites[0].JoinStatus)

	_, err = env.svc.ScheduleMeeting(ctx, "usr-alice", " ", 1)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	_, err = env.svc.ScheduleMeeting(ctx, "usr-ghost", "Planning", 1)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestInviteToMeetingExpandsGroupsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "usr-alice", "Alice", "en")
	env.user(t, "usr-bob", "Bob", "en")
	env.user(t, "usr-carol", "Carol", "en")
	env.group(t, "grp-team", "Team", "usr-alice", "usr-bob", "usr-carol")
	ctx := context.Background()

	meeting, err := env.svc.ScheduleMeeting(ctx, "usr-alice", "Planning", 1_800_000_000_000)
	require.NoError(t, err)

	invites, err := env.svc.InviteToMeeting(ctx, "usr-alice", meeting.ID,
		types.UserTarget{UserID: "usr-bob"},
		types.GroupTarget{GroupID: "grp-team"},
	)
	require.NoError(t, err)
	env.svc.Wait()

	require.Len(t, invites, 3)
	roles := make(map[string]types.MeetingRole)
	for _, invite := range invites {
		roles[invite.UserID] = invite.Role
	}
	assert.Equal(t, types.MeetingRoleCreator, roles["usr-alice"])
	assert.Equal(t, types.MeetingRoleParticipant, roles["usr-bob"])
	assert.Equal(t, types.MeetingRoleParticipant, roles["usr-carol"])

	logged, err := db.GetMeetingInvites(ctx, env.conn, meeting.ID)
	require.NoError(t, err)
	assert.Len(t, logged, 3)

	var emailed []string
	for _, party := range env.notifier.invitations() {
		emailed = append(emailed, party.ID)
	}
	assert.ElementsMatch(t, []string{"usr-bob", "usr-carol"}, emailed)
}

func TestReinviteResetsAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "usr-alice", "Alice", "en")
	env.user(t, "usr-bob", "Bob", "en")
	ctx := context.Background()

	meeting, err := env.svc.ScheduleMeeting(ctx, "usr-alice", "Planning", 1_800_000_000_000)
	require.NoError(t, err)
	_, err = env.svc.InviteToMeeting(ctx, "usr-alice", meeting.ID, types.UserTarget{UserID: "usr-bob"})
	require.NoError(t, err)

	answered, err := env.svc.RespondToMeeting(ctx, "usr-bob", meeting.ID, types.JoinStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, types.JoinStatusDeclined, answered.JoinStatus)

	_, err = env.svc.InviteToMeeting(ctx, "usr-alice", meeting.ID, types.UserTarget{UserID: "usr-bob"})
	require.NoError(t, err)
	env.svc.Wait()

	invites, err := env.svc.MeetingInvites(ctx, "usr-bob")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, types.JoinStatusInvited, invites[0].JoinStatus)
	assert.Len(t, env.notifier.invitations(), 2)
}

func TestMeetingInviteAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "usr-alice", "Alice", "en")
	env.user(t, "usr-bob", "Bob", "en")
	env.user(t, "usr-mallory", "Mallory", "en")
	env.group(t, "grp-team", "Team", "usr-alice", "usr-bob")
	ctx := context.Background()

	meeting, err := env.svc.ScheduleMeeting(ctx, "usr-alice", "Planning", 1_800_000_000_000)
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   string
		meeting string
		invitee types.Participant
		code    apperr.Code
	}{
		{"missing meeting", "usr-alice", "mtg-ghost", types.UserTarget{UserID: "usr-bob"}, apperr.CodeNotFound},
		{"uninvited inviter", "usr-mallory", meeting.ID, types.UserTarget{UserID: "usr-bob"}, apperr.CodeForbidden},
		{"unknown user", "usr-alice", meeting.ID, types.UserTarget{UserID: "usr-ghost"}, apperr.CodeValidation},
		{"unknown group", "usr-alice", meeting.ID, types.GroupTarget{GroupID: "grp-ghost"}, apperr.CodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.InviteToMeeting(ctx, tc.actor, tc.meeting, tc.invitee)
			assert.True(t, apperr.HasCode(err, tc.code), "got %v", err)
		})
	}

	// An invitee may invite others, but only into groups they belong to.
	_, err = env.svc.InviteToMeeting(ctx, "usr-alice", meeting.ID, types.UserTarget{UserID: "usr-mallory"})
	require.NoError(t, err)
	_, err = env.svc.InviteToMeeting(ctx, "usr-mallory", meeting.ID, types.GroupTarget{GroupID: "grp-team"})
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))
	_, err = env.svc.InviteToMeeting(ctx, "usr-mallory", meeting.ID, types.UserTarget{UserID: "usr-bob"})
	assert.NoError(t, err)

	_, err = env.svc.RespondToMeeting(ctx, "usr-bob", meeting.ID, types.JoinStatusInvited)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	env.svc.Wait()
}

func TestRespondRequiresInvite(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "usr-alice", "Alice", "en")
	env.user(t, "usr-bob", "Bob", "en")
	ctx := context.Background()

	meeting, err := env.svc.ScheduleMeeting(ctx, "usr-alice", "Planning", 1_800_000_000_000)
	require.NoError(t, err)

	_, err = env.svc.RespondToMeeting(ctx, "usr-bob", meeting.ID, types.JoinStatusJoined)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))
	_, err = env.svc.RespondToMeeting(ctx, "usr-bob", "mtg-ghost", types.JoinStatusJoined)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}
