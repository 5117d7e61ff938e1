package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
)

var csvHeader = []string{"id", "identity_id", "emotion", "confidence", "session_id", "detected_at"}

// WriteCSV writes events as CSV with a header row, in the order given.
func WriteCSV(w io.Writer, events []database.DetectionEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.IdentityID, 10),
			e.Emotion,
			strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			e.SessionID,
			e.DetectedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
