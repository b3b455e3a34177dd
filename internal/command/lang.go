package command

import (
	"fmt"

	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/spf13/cobra"
)

// NewLangCmd creates the lang command.
func NewLangCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Manage chat languages",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <user-id> <tag>",
		Short: "Set the language a user reads and writes in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if !core.ValidLanguage(args[1]) {
				return writeCommandError(cmd, fmt.Errorf("invalid language tag: %s", args[1]))
			}
			if err := db.SetChatLanguage(cmd.Context(), ctx.DB, args[0], args[1]); err != nil {
				return writeCommandError(cmd, err)
			}
			tag := core.NormalizeLanguage(args[1])
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"user": args[0], "chat_language": tag})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now chats in %s\n", args[0], tag)
			return nil
		},
	})
	return cmd
}
