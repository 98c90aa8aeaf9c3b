package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/api/handlers"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/spf13/cobra"
)

// IndexCmd returns the index command
func IndexCmd() *cobra.Command {
	var (
		userID         string
		meetingID      string
		transcriptFile string
		outputJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "index <meeting.json | ->",
		Short: "Index an analyzed meeting",
		Long: `Stores a meeting's transcript, summary, decisions, action items and key points
in the owner's collection. The input is a JSON document with the fields
user_id, meeting_id, transcript, summary, decisions, action_items, key_points.
Flags override the corresponding fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readIndexInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if userID != "" {
				in.UserID = userID
			}
			if meetingID != "" {
				in.MeetingID = meetingID
			}
			if transcriptFile != "" {
				data, err := os.ReadFile(transcriptFile)
				if err != nil {
					return fmt.Errorf("failed to read transcript: %w", err)
				}
				in.Transcript = string(data)
			}
			return runIndex(cmd, in, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id")
	cmd.Flags().StringVarP(&meetingID, "meeting", "m", "", "Meeting id")
	cmd.Flags().StringVar(&transcriptFile, "transcript", "", "Read the transcript from a text file")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output JSON")

	return cmd
}

// readIndexInput decodes a meeting document from path, or from stdin for "-".
func readIndexInput(stdin io.Reader, path string) (service.IndexInput, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return service.IndexInput{}, fmt.Errorf("failed to open meeting file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req handlers.IndexMeetingRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return service.IndexInput{}, fmt.Errorf("failed to parse meeting JSON: %w", err)
	}
	return req.ToInput(), nil
}

func runIndex(cmd *cobra.Command, in service.IndexInput, outputJSON bool) error {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.MeetingID) == "" {
		return fmt.Errorf("user_id and meeting_id are required")
	}

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

	result, err := a.indexer.Index(ctx, in)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd.OutOrStdout(), handlers.IndexMeetingResponse{
			Collection: result.Collection,
			Fragments:  result.Fragments,
		})
	}
	if result.Fragments == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to index for meeting %s\n", in.MeetingID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d fragments for meeting %s into collection %s\n",
		result.Fragments, in.MeetingID, result.Collection)
	return nil
}
