package pipeline

import (
	"context"

	"github.com/dverhagen/pharmsync/internal/models"
)

// precheckBatchSize is how many fingerprints go into one in-list existence
// query.
const precheckBatchSize = 50

// markExistingAssets batch-queries the remote store for fingerprints that
// already have a registered asset and sets each item's existence flag. On
// query failure it degrades safely: every fingerprint in the failed batch
// is marked as needing upload, never silently skipped.
func (p *Pipeline) markExistingAssets(ctx context.Context, state *models.WorkState) {
	distinct := make([]string, 0)
	seen := make(map[string]struct{})
	for _, item := range state.Items {
		if item.Fingerprint == nil {
			continue
		}
		if _, ok := seen[*item.Fingerprint]; !ok {
			seen[*item.Fingerprint] = struct{}{}
			distinct = append(distinct, *item.Fingerprint)
		}
	}
	if len(distinct) == 0 {
		return
	}

	existing := make(map[string]bool, len(distinct))
	for start := 0; start < len(distinct); start += precheckBatchSize {
		end := min(start+precheckBatchSize, len(distinct))
		batch := distinct[start:end]

		found, err := p.records.ExistingFingerprints(ctx, batch)
		if err != nil {
			p.log.Warn("asset existence query failed, treating batch as needing upload",
				"batch_size", len(batch), "error", err)
			continue
		}
		for _, fp := range found {
			existing[fp] = true
		}
	}

	present := 0
	for _, item := range state.Items {
		if item.Fingerprint == nil {
			continue
		}
		exists := existing[*item.Fingerprint]
		item.AssetExists = &exists
		if exists {
			present++
		}
	}
	p.log.Info("asset precheck complete",
		"distinct_fingerprints", len(distinct), "already_present", present)
}
