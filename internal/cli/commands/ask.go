package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/spf13/cobra"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	var (
		userID     string
		topK       int
		searchOnly bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask a question about a user's meetings",
		Long:    "Answers a question using only the given user's indexed meetings. With --search, prints the nearest fragments instead of an answer.",
		Args:    cobra.MinimumNArgs(1),
		Example: "  meetmind ask --user alice \"what did we decide about the launch?\"\n  meetmind ask -u alice --search -k 10 budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runAsk(cmd, userID, question, topK, searchOnly, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User whose meetings are searched")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of fragments to retrieve (1-20, default MEETMIND_RAG_TOP_K)")
	cmd.Flags().BoolVar(&searchOnly, "search", false, "Print matching fragments without composing an answer")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output JSON")

	return cmd
}

func runAsk(cmd *cobra.Command, userID, question string, topK int, searchOnly, outputJSON bool) error {
	ctx := context.Background()

	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if topK == 0 {
		topK = cfg.TopK
	}

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	if searchOnly {
		matches, err := a.retrieval.Search(ctx, userID, question, topK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if outputJSON {
			return printJSON(out, matches)
		}
		printMatches(out, matches)
		return nil
	}

	answer, err := a.retrieval.Ask(ctx, userID, question, topK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if outputJSON {
		return printJSON(out, answer)
	}
	printAnswer(out, answer)
	return nil
}

func printAnswer(w io.Writer, answer *service.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	for i, s := range answer.Snippets {
		fmt.Fprintf(w, "%d. [%s] %s (%.2f)\n", i+1, s.Kind, s.MeetingID, s.Relevance)
		fmt.Fprintf(w, "   %s\n", s.Text)
	}
}

func printMatches(w io.Writer, matches []domain.RetrievedMatch) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "Found %d results:\n\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(w, "%d. %s [%s] (%.2f)\n", i+1, m.MeetingID(), m.Kind(), m.Relevance())
		content := m.Content
		if r := []rune(content); len(r) > 100 {
			content = string(r[:97]) + "..."
		}
		fmt.Fprintf(w, "   %s\n", content)
		fmt.Fprintf(w, "   ID: %s\n", m.ID)
		if i < len(matches)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
}
