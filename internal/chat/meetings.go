package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// ScheduleMeeting creates a meeting with actorID as its creator. The creator
// is logged as the first invitee.
func (s *Service) ScheduleMeeting(ctx context.Context, actorID, title string, startsAt int64) (types.Meeting, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Meeting{}, apperr.Validation("meeting title is required")
	}
	if startsAt <= 0 {
		return types.Meeting{}, apperr.Validation("meeting start time is required")
	}
	creator, err := s.dir.User(ctx, actorID)
	if err != nil {
		return types.Meeting{}, apperr.Internal("load creator", err)
	}
	if creator == nil {
		return types.Meeting{}, apperr.Validationf("user %s does not exist", actorID)
	}

	now := s.now().UnixMilli()
	var meeting types.Meeting
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		meeting, err = db.CreateMeeting(ctx, tx, types.Meeting{
			Title:     title,
			CreatorID: actorID,
			StartsAt:  startsAt,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		return db.UpsertMeetingInvite(ctx, tx, types.MeetingInvite{
			MeetingID:  meeting.ID,
			UserID:     actorID,
			JoinStatus: types.JoinStatusJoined,
			Role:       types.MeetingRoleCreator,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return types.Meeting{}, apperr.Internal("schedule meeting", err)
	}
	return meeting, nil
}

// InviteToMeeting logs an invite for every user named by invitees, expanding
// groups to their members, and emails each of them. Anyone already on the
// invite log may invite more people. Re-inviting resets a user's answer.
func (s *Service) InviteToMeeting(ctx context.Context, actorID, meetingID string, invitees ...types.Participant) ([]types.MeetingInvite, error) {
	if len(invitees) == 0 {
		return nil, apperr.Validation("at least one invitee is required")
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeInviter(ctx, actorID, meeting); err != nil {
		return nil, err
	}
	users, err := s.expandInvitees(ctx, actorID, invitees)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	invites := make([]types.MeetingInvite, 0, len(users))
	for _, user := range users {
		role := types.MeetingRoleParticipant
		status := types.JoinStatusInvited
		if user.ID == meeting.CreatorID {
			role = types.MeetingRoleCreator
			status = types.JoinStatusJoined
		}
		invites = append(invites, types.MeetingInvite{
			MeetingID:  meeting.ID,
			UserID:     user.ID,
			JoinStatus: status,
			Role:       role,
			UpdatedAt:  now,
		})
	}
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, invite := range invites {
			if err := db.UpsertMeetingInvite(ctx, tx, invite); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("log meeting invites", err)
	}

	inviter, err := s.dir.User(ctx, actorID)
	if err != nil || inviter == nil {
		s.logger.Warn("meeting invitations skipped", zap.String("meeting", meeting.ID), zap.Error(err))
		metrics.NotificationFailures.Inc()
		return invites, nil
	}
	s.background(s.opts.NotifyTimeout, func(ctx context.Context) {
		s.notifyInvitees(ctx, meeting, *inviter, users)
	})
	return invites, nil
}

// RespondToMeeting records an invitee's answer.
func (s *Service) RespondToMeeting(ctx context.Context, actorID, meetingID string, status types.JoinStatus) (types.MeetingInvite, error) {
	if status != types.JoinStatusJoined && status != types.JoinStatusDeclined {
		return types.MeetingInvite{}, apperr.Validationf("unknown meeting answer %q", status)
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return types.MeetingInvite{}, err
	}
	now := s.now().UnixMilli()
	if err := db.SetJoinStatus(ctx, s.db, meeting.ID, actorID, status, now); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.MeetingInvite{}, apperr.Forbidden(fmt.Sprintf("%s is not invited to %s", actorID, meeting.ID))
		}
		return types.MeetingInvite{}, apperr.Internal("answer meeting invite", err)
	}
	invite, err := db.GetMeetingInvite(ctx, s.db, meeting.ID, actorID)
	if err != nil || invite == nil {
		return types.MeetingInvite{}, apperr.Internal("load meeting invite", err)
	}
	return *invite, nil
}

// MeetingInvites lists the meetings actorID is invited to, latest first.
func (s *Service) MeetingInvites(ctx context.Context, actorID string) ([]types.MeetingInvite, error) {
	invites, err := db.GetUserMeetingInvites(ctx, s.db, actorID)
	if err != nil {
		return nil, apperr.Internal("list meeting invites", err)
	}
	return invites, nil
}

func (s *Service) loadMeeting(ctx context.Context, meetingID string) (types.Meeting, error) {
	meeting, err := db.GetMeeting(ctx, s.db, meetingID)
	if err != nil {
		return types.Meeting{}, apperr.Internal("load meeting", err)
	}
	if meeting == nil {
		return types.Meeting{}, apperr.NotFound("meeting " + meetingID + " not found")
	}
	return *meeting, nil
}

func (s *Service) authorizeInviter(ctx context.Context, actorID string, meeting types.Meeting) error {
	if actorID == meeting.CreatorID {
		return nil
	}
	invite, err := db.GetMeetingInvite(ctx, s.db, meeting.ID, actorID)
	if err != nil {
		return apperr.Internal("load meeting invite", err)
	}
	if invite == nil {
		return apperr.Forbidden(fmt.Sprintf("%s is not invited to %s", actorID, meeting.ID))
	}
	return nil
}

// expandInvitees resolves participants to distinct users in first-seen order.
// Inviting a group requires membership in it.
func (s *Service) expandInvitees(ctx context.Context, actorID string, invitees []types.Participant) ([]types.User, error) {
	seen := make(map[string]bool)
	var users []types.User
	add := func(user types.User) {
		if !seen[user.ID] {
			seen[user.ID] = true
			users = append(users, user)
		}
	}

	for _, invitee := range invitees {
		switch t := invitee.(type) {
		case types.UserTarget:
			user, err := s.dir.User(ctx, t.UserID)
			if err != nil {
				return nil, apperr.Internal("load invitee", err)
			}
			if user == nil {
				return nil, apperr.Validationf("user %s does not exist", t.UserID)
			}
			add(*user)
		case types.GroupTarget:
			if _, err := s.resolveReceiver(ctx, actorID, t); err != nil {
				return nil, err
			}
			members, err := s.dir.GroupMembers(ctx, t.GroupID)
			if err != nil {
				return nil, apperr.Internal("load group members", err)
			}
			for _, member := range members {
				add(member)
			}
		default:
			return nil, apperr.Validationf("unsupported participant %T", invitee)
		}
	}
	return users, nil
}

// notifyInvitees emails everyone but the inviter.
func (s *Service) notifyInvitees(ctx context.Context, meeting types.Meeting, inviter types.User, users []types.User) {
	if s.notifier == nil {
		return
	}
	for _, user := range users {
		if user.ID == inviter.ID {
			continue
		}
		if err := s.notifier.SendMeetingInvitation(ctx, userParty(user), meeting, inviter.Name); err != nil {
			s.logger.Warn("meeting invitation failed",
				zap.String("meeting", meeting.ID),
				zap.String("recipient", user.ID),
				zap.Error(err))
			metrics.NotificationFailures.Inc()
		}
	}
}
