package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ForgetCmd returns the forget command
func ForgetCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "forget <meeting-id>",
		Short:   "Remove a meeting from its owner's collection",
		Args:    cobra.ExactArgs(1),
		Example: "  meetmind forget standup-2024-05-02 --user alice",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd, userID, args[0])
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runForget(cmd *cobra.Command, userID, meetingID string) error {
	ctx := context.Background()

	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.indexer.DeleteMeeting(ctx, userID, meetingID); err != nil {
		return fmt.Errorf("forget failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed meeting %s for user %s\n", meetingID, userID)
	return nil
}
