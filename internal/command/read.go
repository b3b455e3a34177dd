package command

import (
	"errors"
	"fmt"

	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewReadCmd creates the read command.
func NewReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [message-id]",
		Short: "Mark a message, or a whole conversation, as read",
		Args:  cobra.MaximumNArgs(1),
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
			conversation, _ := cmd.Flags().GetString("conversation")
			isGroup, _ := cmd.Flags().GetBool("group")
			if (len(args) == 0) == (conversation == "") {
				return writeCommandError(cmd, errors.New("pass a message id or --conversation"))
			}

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cleanup()

			if len(args) == 1 {
				if err := svc.MarkRead(cmd.Context(), actor, args[0]); err != nil {
					return writeCommandError(cmd, err)
				}
				if ctx.JSONMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"message": args[0], "read": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read\n", args[0])
				return nil
			}

			var counterpart types.Participant = types.UserTarget{UserID: conversation}
			if isGroup {
				counterpart = types.GroupTarget{GroupID: conversation}
			}
			marked, err := svc.MarkConversationRead(cmd.Context(), actor, counterpart)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"conversation": conversation, "marked": marked})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d messages read\n", marked)
			return nil
		},
	}
	cmd.Flags().String("conversation", "", "counterpart user or group id")
	cmd.Flags().Bool("group", false, "counterpart is a group id")
	return cmd
}
