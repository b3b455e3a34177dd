package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"initialized": true,
					"database":    ctx.Config.Database.Path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", ctx.Config.Database.Path)
			return nil
		},
	}
}
