package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "parley"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Parley - multi-tenant conversation engine",
		Long:          "Parley stores encrypted direct and group conversations and serves them over HTTP and websockets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "path to a YAML config file")
	cmd.PersistentFlags().String("db", "", "override database.path")
	cmd.PersistentFlags().String("as", "", "act as this user id")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("verbose", false, "log to stderr")

	cmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewUserCmd(),
		NewGroupCmd(),
		NewMeetingCmd(),
		NewLangCmd(),
		NewSendCmd(),
		NewInboxCmd(),
		NewReadCmd(),
		NewHistoryCmd(),
		NewTokenCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
