package command

import (
	"fmt"
	"time"

	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/types"
	"github.com/spf13/cobra"
)

// NewGroupCmd creates the group parent command.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	cmd.AddCommand(newGroupAddCmd(), newGroupJoinCmd())
	return cmd
}

func newGroupAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			id, _ := cmd.Flags().GetString("id")
			members, _ := cmd.Flags().GetStringSlice("member")
			now := time.Now().UnixMilli()

			group, err := db.CreateGroup(cmd.Context(), ctx.DB, types.Group{ID: id, Name: args[0], CreatedAt: now})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			for _, member := range members {
				if err := db.AddGroupMember(cmd.Context(), ctx.DB, group.ID, member, now); err != nil {
					return writeCommandError(cmd, fmt.Errorf("add %s: %w", member, err))
				}
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"group": group, "members": members})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with %d members\n", group.Name, group.ID, len(members))
			return nil
		},
	}
	cmd.Flags().String("id", "", "explicit group id (default: generated)")
	cmd.Flags().StringSlice("member", nil, "user id to add (repeatable)")
	return cmd
}

func newGroupJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <group-id> <user-id>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if err := db.AddGroupMember(cmd.Context(), ctx.DB, args[0], args[1], time.Now().UnixMilli()); err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"group": args[0], "user": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s joined %s\n", args[1], args[0])
			return nil
		},
	}
}
