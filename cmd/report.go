package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/reporting"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <identity-id>",
	Short: "Show emotion statistics for an enrolled person",
	Long: `Show how often each emotion was detected for a person and the mean
classifier confidence per emotion.

Examples:
  facemood report 3
  facemood report 3 --json

  # Export the full detection history
  facemood report 3 --csv > ana.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Bool("json", false, "Output as JSON")
	reportCmd.Flags().Bool("csv", false, "Write the detection history as CSV")
}

func runReport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid identity id %q", args[0])
	}
	jsonOutput := mustGetBool(cmd, "json")
	csvOutput := mustGetBool(cmd, "csv")

	ctx := context.Background()
	cfg := config.Load()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reports := reporting.NewService(store)

	if csvOutput {
		events, err := reports.History(ctx, id)
		if err != nil {
			return err
		}
		return reporting.WriteCSV(os.Stdout, events)
	}

	report, err := reports.Summary(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(report)
	}

	fmt.Printf("%s (identity %d)\n", report.Label, report.IdentityID)
	fmt.Printf("Detections: %d\n", report.Total)
	if report.Total == 0 {
		return nil
	}
	fmt.Printf("First seen: %s\n", report.FirstSeen.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Last seen:  %s\n\n", report.LastSeen.Local().Format("2006-01-02 15:04:05"))

	labels := make([]string, 0, len(report.EmotionCounts))
	for label := range report.EmotionCounts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if report.EmotionCounts[labels[i]] != report.EmotionCounts[labels[j]] {
			return report.EmotionCounts[labels[i]] > report.EmotionCounts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMOTION\tCOUNT\tMEAN CONFIDENCE")
	fmt.Fprintln(w, "-------\t-----\t---------------")
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%d\t%.1f\n", label, report.EmotionCounts[label], report.MeanConfidence[label])
	}
	return w.Flush()
}
