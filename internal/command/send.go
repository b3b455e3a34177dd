package command

import (
	"fmt"
	"strings"

	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <target> [body]",
		Short: "Send a message to a user or group",
		Args:  cobra.RangeArgs(1, 2),
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
			kind, _ := cmd.Flags().GetString("kind")
			key, _ := cmd.Flags().GetString("key")
			replyTo, _ := cmd.Flags().GetString("reply-to")
			tag, _ := cmd.Flags().GetString("tag")
			important, _ := cmd.Flags().GetBool("important")

			var target types.Participant = types.UserTarget{UserID: args[0]}
			if isGroup {
				target = types.GroupTarget{GroupID: args[0]}
			}
			req := chat.SubmitRequest{
				ActorID: actor,
				Target:  target,
				KeyHint: key,
				Kind:    types.MessageKind(kind),
				Flags:   types.MessageFlags{Important: important},
			}
			if len(args) > 1 {
				req.Body = args[1]
			}
			if replyTo = strings.TrimSpace(strings.TrimPrefix(replyTo, "#")); replyTo != "" {
				req.ThreadParentID = &replyTo
			}
			if tag != "" {
				req.TagUserID = &tag
			}

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			result, err := svc.Submit(cmd.Context(), req)
			_ = cleanup()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent #%s to %s %s\n",
				core.ShortID(result.View.ID, 0),
				result.View.TargetName,
				metaStyle.Render("("+result.Meta.ConversationKey+")"))
			return nil
		},
	}
	cmd.Flags().Bool("group", false, "target is a group id")
	cmd.Flags().String("kind", string(types.MessageKindText), "message kind: text, file, or call")
	cmd.Flags().String("key", "", "conversation key to continue")
	cmd.Flags().String("reply-to", "", "parent message id")
	cmd.Flags().String("tag", "", "user id to tag")
	cmd.Flags().Bool("important", false, "flag the message as important")
	return cmd
}
