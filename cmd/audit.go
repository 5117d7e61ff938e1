package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Find enrolled people whose faces look like duplicates",
	Long: `Scan all enrolled identities for pairs closer than the duplicate threshold,
for example people enrolled before DUPLICATE_THRESHOLD was raised.

Candidates come from an HNSW graph (HNSW_NEIGHBORS per identity); reported
distances are exact. Set HNSW_INDEX_PATH to reuse the graph between audits.

Examples:
  facemood audit
  facemood audit --threshold 0.45 --neighbors 16
  facemood audit --json`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Float64("threshold", 0, "Duplicate threshold (defaults to DUPLICATE_THRESHOLD)")
	auditCmd.Flags().Int("neighbors", 0, "Candidates inspected per identity (defaults to HNSW_NEIGHBORS)")
	auditCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// AuditPair is one suspected duplicate in the audit output
type AuditPair struct {
	FirstID       int64   `json:"first_id"`
	FirstLabel    string  `json:"first_label"`
	FirstContact  string  `json:"first_contact"`
	SecondID      int64   `json:"second_id"`
	SecondLabel   string  `json:"second_label"`
	SecondContact string  `json:"second_contact"`
	Distance      float64 `json:"distance"`
}

func runAudit(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	neighbors := mustGetInt(cmd, "neighbors")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	if threshold <= 0 {
		threshold = cfg.Matching.DuplicateThreshold
	}
	if neighbors <= 0 {
		neighbors = cfg.Audit.Neighbors
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.CountIdentities(ctx)
	if err != nil {
		return err
	}

	svc := enrollment.NewService(store, nil, cfg.Embedding.Dim, threshold)
	bar := newProgressBar(total, "Auditing", "identities", jsonOutput)

	pairs, err := svc.Audit(ctx, enrollment.AuditOptions{
		Neighbors: neighbors,
		IndexPath: cfg.Audit.IndexPath,
		Progress: func(done, _ int) {
			if bar != nil {
				bar.Set(done)
			}
		},
	})
	if err != nil {
		return err
	}

	result := make([]AuditPair, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, AuditPair{
			FirstID:       p.First.ID,
			FirstLabel:    p.First.Label(),
			FirstContact:  p.First.Contact,
			SecondID:      p.Second.ID,
			SecondLabel:   p.Second.Label(),
			SecondContact: p.Second.Contact,
			Distance:      p.Distance,
		})
	}

	if jsonOutput {
		return outputJSON(result)
	}
	if bar != nil {
		fmt.Println()
	}
	if len(result) == 0 {
		fmt.Printf("No duplicates among %d identities (threshold %.2f)\n", total, threshold)
		return nil
	}

	fmt.Printf("Found %d suspected duplicates (threshold %.2f):\n\n", len(result), threshold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISTANCE\tFIRST\tSECOND")
	fmt.Fprintln(w, "--------\t-----\t------")
	for _, p := range result {
		fmt.Fprintf(w, "%.4f\t%d %s <%s>\t%d %s <%s>\n",
			p.Distance, p.FirstID, p.FirstLabel, p.FirstContact, p.SecondID, p.SecondLabel, p.SecondContact)
	}
	return w.Flush()
}
