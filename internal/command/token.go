package command

import (
	"fmt"
	"time"

	"github.com/adamavenir/parley/internal/api"
	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			ttl, _ := cmd.Flags().GetDuration("ttl")
			auth, err := api.NewAuthenticator(ctx.Config.JWT.HSSecret)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			token, err := auth.Issue(args[0], ttl)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"user": args[0], "token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
