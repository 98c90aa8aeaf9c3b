package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/cloo-solutions/meetmind/internal/config"
	"github.com/spf13/cobra"
)

// TranscribeCmd returns the transcribe command
func TranscribeCmd() *cobra.Command {
	var (
		outFile    string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file | s3://bucket/key>",
		Short: "Transcribe an audio recording",
		Long:  "Transcribes a local or S3-hosted recording. Files over 25 MiB are split into 10-minute chunks and transcribed in parallel.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, args[0], outFile, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the transcript to a file instead of stdout")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output JSON")

	return cmd
}

func runTranscribe(cmd *cobra.Command, input, outFile string, outputJSON bool) error {
	ctx := context.Background()

	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a, err := buildAudioApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	path, cleanup, err := a.localAudio(ctx, input)
	if err != nil {
		return err
	}
	defer cleanup()

	transcript, err := a.transcription.TranscribeAudio(ctx, path)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(transcript+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d characters to %s\n", len(transcript), outFile)
		return nil
	}

	if outputJSON {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"source":     input,
			"transcript": transcript,
			"characters": len(transcript),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), transcript)
	return nil
}

// buildAudioApp wires only what transcription needs, so no vector store is
// contacted.
func buildAudioApp(ctx context.Context, cfg *config.Config) (*app, error) {
	copied := *cfg
	copied.VectorBackend = config.BackendChroma
	return buildApp(ctx, &copied, false)
}
