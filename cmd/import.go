package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <manifest.csv>",
	Short: "Enroll many people from a CSV manifest",
	Long: `Enroll people listed in a CSV manifest with the header
name,surname,contact,image. Image paths are relative to the manifest.

Rows that fail (duplicate face, duplicate contact, no face, ...) are reported and
skipped; the remaining rows are still enrolled.

Examples:
  facemood import staff.csv
  facemood import staff.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

type manifestRow struct {
	Line  int
	Req   enrollment.Request
	Image string
}

// ImportFailure describes a manifest row that was not enrolled
type ImportFailure struct {
	Line    int    `json:"line"`
	Contact string `json:"contact"`
	Error   string `json:"error"`
}

// ImportResult represents the result of an import
type ImportResult struct {
	Rows          int             `json:"rows"`
	Enrolled      int             `json:"enrolled"`
	Failed        []ImportFailure `json:"failed"`
	DurationMs    int64           `json:"duration_ms"`
	DurationHuman string          `json:"duration_human,omitempty"`
}

// readManifest parses the manifest; columns are located by header name.
func readManifest(r io.Reader, baseDir string) ([]manifestRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "surname", "contact", "image"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("manifest is missing the %q column", required)
		}
	}

	var rows []manifestRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", line, err)
		}
		image := record[cols["image"]]
		if image != "" && !filepath.IsAbs(image) {
			image = filepath.Join(baseDir, image)
		}
		rows = append(rows, manifestRow{
			Line: line,
			Req: enrollment.Request{
				Name:    record[cols["name"]],
				Surname: record[cols["surname"]],
				Contact: record[cols["contact"]],
			},
			Image: image,
		})
	}
	return rows, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	manifestPath := args[0]
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()

	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	rows, err := readManifest(f, filepath.Dir(manifestPath))
	f.Close()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if jsonOutput {
			return outputJSON(ImportResult{Failed: []ImportFailure{}})
		}
		fmt.Println("Manifest has no rows.")
		return nil
	}

	ctx := context.Background()
	cfg := config.Load()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	collab, err := newCollaborators(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer collab.Close()

	svc := enrollment.NewService(store, collab.pipeline, cfg.Embedding.Dim, cfg.Matching.DuplicateThreshold)

	bar := newProgressBar(len(rows), "Enrolling", "people", jsonOutput)
	result := ImportResult{Rows: len(rows), Failed: []ImportFailure{}}

	// Rows are enrolled one at a time; enrollment serializes on the store lock anyway.
	for _, row := range rows {
		err := importRow(ctx, svc, row)
		if err != nil {
			result.Failed = append(result.Failed, ImportFailure{Line: row.Line, Contact: row.Req.Contact, Error: err.Error()})
		} else {
			result.Enrolled++
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	duration := time.Since(startTime)
	result.DurationMs = duration.Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println()
	fmt.Printf("Enrolled %d of %d people in %s\n", result.Enrolled, result.Rows, formatDuration(duration))
	for _, failure := range result.Failed {
		fmt.Printf("  line %d (%s): %s\n", failure.Line, failure.Contact, failure.Error)
	}
	return nil
}

func importRow(ctx context.Context, svc *enrollment.Service, row manifestRow) error {
	if row.Image == "" {
		return errors.New("image is required")
	}
	image, err := os.ReadFile(row.Image)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	_, err = svc.EnrollImage(ctx, row.Req, image)
	return describeEnrollError(err)
}
