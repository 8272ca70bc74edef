package cli

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/FundManagerGo/config"
	"github.com/dyike/FundManagerGo/consts"
	"github.com/dyike/FundManagerGo/internal/memory"
	"github.com/dyike/FundManagerGo/internal/storage/sqlite"
)

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var sessionId string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past consultations and their long-term memory summary",
		Long: `Without --session, lists recent consultation runs from the local
transcript mirror. With --session, shows that session's automatically
derived summary from the memory service plus its mirrored turns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionId == "" {
				return listRecentRuns(cmd.Context(), cfg, limit)
			}
			return showSession(cmd.Context(), cfg, sessionId)
		},
	}

	cmd.Flags().StringVar(&sessionId, "session", "", "Session id to inspect")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent runs to list")

	return cmd
}

func listRecentRuns(ctx context.Context, cfg *config.Config, limit int) error {
	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "fundmanager.db"))
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No consultations recorded yet. Run: fundmanager consult")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %-10s  %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"), run.Status, run.SessionId)
	}
	return nil
}

func showSession(ctx context.Context, cfg *config.Config, sessionId string) error {
	fmt.Println(bannerStyle.Render(fmt.Sprintf("📚 Consultation history — %s", sessionId)))

	summary, err := memory.NewClient(cfg).LatestSummary(ctx, sessionId)
	switch {
	case errors.Is(err, memory.ErrNoSummary):
		fmt.Println(toolStyle.Render("No summary has been derived for this session yet."))
		fmt.Println("Summaries are produced asynchronously after a completed consultation")
		fmt.Println("and may take a few minutes to appear.")
	case err != nil:
		// A failed read is not an error to the user, just an absent summary.
		fmt.Println(toolStyle.Render(fmt.Sprintf("Summary unavailable: %v", err)))
	default:
		fmt.Printf("\nSummarized at %s\n\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))
		printSummary(summary.Content)
	}

	return printLocalTurns(ctx, cfg, sessionId)
}

var topicPattern = regexp.MustCompile(`(?s)<topic name="([^"]+)">\s*(.*?)\s*</topic>`)

// printSummary renders the summarizer's XML topic blocks as sections,
// falling back to the raw text when no topics are present.
func printSummary(content string) {
	topics := topicPattern.FindAllStringSubmatch(content, -1)
	if len(topics) == 0 {
		fmt.Println(strings.TrimSpace(content))
		return
	}

	for _, topic := range topics {
		fmt.Println(doneStyle.Render("📌 " + topic[1]))
		fmt.Println(html.UnescapeString(strings.TrimSpace(topic[2])))
		fmt.Println()
	}
}

func printLocalTurns(ctx context.Context, cfg *config.Config, sessionId string) error {
	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "fundmanager.db"))
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer store.Close()

	turns, err := store.ListTurns(ctx, sessionId)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout)
	fmt.Println(doneStyle.Render("Local transcript"))
	for _, turn := range turns {
		preview := truncate(strings.TrimSpace(turn.Result), 120)
		fmt.Printf("  %d. %-20s %s\n", turn.Seq, consts.StageDisplayName(turn.Stage), preview)
	}
	return nil
}
