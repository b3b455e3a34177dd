package command

import (
	"fmt"
	"strings"

	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewInboxCmd creates the inbox command.
func NewInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List conversations, newest first",
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
			limit, _ := cmd.Flags().GetInt("limit")

			svc, cleanup, err := ctx.Engine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cleanup()

			summaries := []types.ConversationSummary{}
			for summary, err := range svc.ListConversations(cmd.Context(), actor) {
				if err != nil {
					return writeCommandError(cmd, err)
				}
				summaries = append(summaries, summary)
				if limit > 0 && len(summaries) >= limit {
					break
				}
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No conversations yet")
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render("Inbox"))
			for _, summary := range summaries {
				fmt.Fprintln(out, formatSummary(summary))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "show at most this many conversations")
	return cmd
}

func formatSummary(summary types.ConversationSummary) string {
	var b strings.Builder
	name := nameStyle.Render(summary.CounterpartName)
	if summary.Kind == types.ConversationGroup {
		name = groupStyle.Render("#" + summary.CounterpartName)
	}
	b.WriteString(name)
	if summary.Unread > 0 {
		b.WriteString(" ")
		b.WriteString(unreadStyle.Render(fmt.Sprintf("(%d)", summary.Unread)))
	}
	b.WriteString("  ")
	b.WriteString(metaStyle.Render(relativeTime(summary.LastMessageAt)))
	b.WriteString("\n  ")
	preview := summary.LastMessage
	if summary.HasAttachment && preview == "" {
		preview = "[attachment]"
	}
	b.WriteString(previewStyle.Render(truncate(preview, 60)))
	return b.String()
}
