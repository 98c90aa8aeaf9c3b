package commands

import (
	"github.com/cloo-solutions/meetmind/internal/cli"
	"github.com/spf13/cobra"
)

// RootCmd assembles the meetmind command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meetmind",
		Short:         "Meeting transcription and per-user meeting search",
		Long:          "meetmind transcribes meeting recordings, indexes meetings into per-user collections and answers questions grounded in a user's own meetings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(TranscribeCmd())
	rootCmd.AddCommand(IndexCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(ForgetCmd())

	return rootCmd
}
