package command

import (
	"fmt"
	"slices"

	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <counterpart>",
		Short: "Show recent messages with a user or group",
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
			isGroup, _ := cmd.Flags().GetBool("group")
			limit, _ := cmd.Flags().GetInt("limit")

			var counterpart types.Participant = types.UserTarget{UserID: args[0]}
			if isGroup {
				counterpart = types.GroupTarget{GroupID: args[0]}
			}

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cleanup()

			views, err := svc.ConversationMessages(cmd.Context(), actor, counterpart, &types.MessageQueryOptions{Limit: limit})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if views == nil {
				views = []types.MessageView{}
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), views)
			}

			// Oldest first.
			slices.Reverse(views)
			out := cmd.OutOrStdout()
			for _, view := range views {
				fmt.Fprintln(out, formatView(view))
			}
			return nil
		},
	}
	cmd.Flags().Bool("group", false, "counterpart is a group id")
	cmd.Flags().Int("limit", 20, "number of messages")
	return cmd
}

func formatView(view types.MessageView) string {
	var body string
	switch view.Kind {
	case types.MessageKindCall:
		state := string(types.CallStateInitiated)
		if view.CallState != nil {
			state = string(*view.CallState)
		}
		body = metaStyle.Render("call " + state)
	case types.MessageKindFile:
		body = view.Text + " " + metaStyle.Render("[file]")
	default:
		body = view.Text
	}
	line := fmt.Sprintf("%s %s %s  %s",
		metaStyle.Render("#"+core.ShortID(view.ID, 0)),
		nameStyle.Render(view.SenderName+":"),
		body,
		metaStyle.Render(relativeTime(view.CreatedAt)))
	if view.Thread != nil {
		line += "\n    " + metaStyle.Render("↳ "+truncate(view.Thread.TranslatedText, 50))
	}
	return line
}
