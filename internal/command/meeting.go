package command

import (
	"fmt"
	"time"

	"github.com/adamavenir/parley/internal/types"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewMeetingCmd creates the meeting parent command.
func NewMeetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Schedule meetings and send invitations",
	}
	cmd.AddCommand(newMeetingAddCmd(), newMeetingInviteCmd(), newMeetingAnswerCmd(), newMeetingListCmd())
	return cmd
}

func newMeetingAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Schedule a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			actor, err := ctx.RequireActor()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			at, _ := cmd.Flags().GetString("at")
			startsAt, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("--at must be RFC 3339: %w", err))
			}

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			meeting, err := svc.ScheduleMeeting(cmd.Context(), actor, args[0], startsAt.UnixMilli())
			_ = cleanup()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), meeting)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s (%s) %s\n",
				meeting.Title, meeting.ID, metaStyle.Render(humanize.Time(startsAt)))
			return nil
		},
	}
	cmd.Flags().String("at", "", "start time, RFC 3339")
	return cmd
}

func newMeetingInviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite <meeting-id>",
		Short: "Invite users or whole groups to a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			actor, err := ctx.RequireActor()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			users, _ := cmd.Flags().GetStringSlice("user")
			groups, _ := cmd.Flags().GetStringSlice("group")
			var invitees []types.Participant
			for _, id := range users {
				invitees = append(invitees, types.UserTarget{UserID: id})
			}
			for _, id := range groups {
				invitees = append(invitees, types.GroupTarget{GroupID: id})
			}

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			invites, err := svc.InviteToMeeting(cmd.Context(), actor, args[0], invitees...)
			_ = cleanup()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), invites)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invited %d to %s\n", len(invites), args[0])
			return nil
		},
	}
	cmd.Flags().StringSlice("user", nil, "user id to invite (repeatable)")
	cmd.Flags().StringSlice("group", nil, "group id whose members to invite (repeatable)")
	return cmd
}

func newMeetingAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <meeting-id> <joined|declined>",
		Short: "Accept or decline a meeting invitation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			actor, err := ctx.RequireActor()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			invite, err := svc.RespondToMeeting(cmd.Context(), actor, args[0], types.JoinStatus(args[1]))
			_ = cleanup()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), invite)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", invite.JoinStatus, invite.MeetingID)
			return nil
		},
	}
}

func newMeetingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List your meeting invitations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			actor, err := ctx.RequireActor()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			invites, err := svc.MeetingInvites(cmd.Context(), actor)
			_ = cleanup()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				if invites == nil {
					invites = []types.MeetingInvite{}
				}
				return writeJSON(cmd.OutOrStdout(), invites)
			}
			if len(invites) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No invitations")
				return nil
			}
			for _, invite := range invites {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
					nameStyle.Render(invite.MeetingID),
					invite.JoinStatus,
					metaStyle.Render(string(invite.Role)+", "+relativeTime(invite.UpdatedAt)))
			}
			return nil
		},
	}
}
