package command

import (
	"fmt"
	"time"

	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewUserCmd creates the user parent command.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			id, _ := cmd.Flags().GetString("id")
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")
			lang, _ := cmd.Flags().GetString("lang")
			if lang != "" && !core.ValidLanguage(lang) {
				return writeCommandError(cmd, fmt.Errorf("invalid language tag: %s", lang))
			}

			user, err := db.CreateUser(cmd.Context(), ctx.DB, types.User{
				ID:           id,
				Name:         args[0],
				Email:        email,
				Phone:        phone,
				ChatLanguage: lang,
				CreatedAt:    time.Now().UnixMilli(),
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %s)\n", user.Name, user.ID, user.ChatLanguage)
			return nil
		},
	}
	cmd.Flags().String("id", "", "explicit user id (default: generated)")
	cmd.Flags().String("email", "", "contact email for call notifications")
	cmd.Flags().String("phone", "", "contact phone for call notifications")
	cmd.Flags().String("lang", "", "chat language (BCP 47, default en)")
	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			users, err := db.GetUsers(cmd.Context(), ctx.DB)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				if users == nil {
					users = []types.User{}
				}
				return writeJSON(cmd.OutOrStdout(), users)
			}
			for _, user := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
					nameStyle.Render(user.Name), metaStyle.Render(user.ID), user.ChatLanguage)
			}
			return nil
		},
	}
}
