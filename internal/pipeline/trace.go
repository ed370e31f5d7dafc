package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/dverhagen/pharmsync/internal/models"
)

// WriteTraceCSV writes one row per work item for duplicate analysis: the
// diagnostic dedup key alongside fingerprint and final status.
func WriteTraceCSV(path string, state *models.WorkState) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"work_id", "dedup_key", "state", "pharmacy_name", "search_timestamp", "fingerprint", "asset_exists", "status", "last_error"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write trace header: %w", err)
	}

	for _, item := range state.Items {
		ts := ""
		if item.SearchTimestamp != nil {
			ts = item.SearchTimestamp.Format(time.RFC3339)
		}
		fp := ""
		if item.Fingerprint != nil {
			fp = *item.Fingerprint
		}
		exists := ""
		if item.AssetExists != nil {
			exists = fmt.Sprintf("%t", *item.AssetExists)
		}
		lastErr := ""
		if item.LastError != nil {
			lastErr = *item.LastError
		}
		row := []string{item.WorkID, item.DedupKey, item.State, item.PharmacyName, ts, fp, exists, string(item.Status), lastErr}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write trace row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
