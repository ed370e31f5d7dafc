package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dverhagen/pharmsync/internal/models"
	"github.com/dverhagen/pharmsync/internal/store"
)

// missingImageSampleSize bounds how many missing screenshot paths are
// echoed in the planning warning.
const missingImageSampleSize = 5

// plan scans the input directory, parses each result file's metadata, and
// builds the ordered work catalog. The dataset is acquired or created
// first; no logical records are written here.
func (p *Pipeline) plan(ctx context.Context) (*models.WorkState, error) {
	info, err := os.Stat(p.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", p.opts.InputDir)
	}

	files, err := p.collectResultFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		if p.opts.SingleFile != "" {
			return nil, fmt.Errorf("result file %q not found in %s", p.opts.SingleFile, p.opts.InputDir)
		}
		return nil, fmt.Errorf("no result files found in %s", p.opts.InputDir)
	}

	datasetID, err := p.records.EnsureDataset(ctx, store.DatasetKindStates, p.opts.DatasetTag)
	if err != nil {
		return nil, err
	}

	state := models.NewWorkState(uuid.New().String()[:8], p.opts.DatasetTag, datasetID)
	ps := state.Phase(models.PhasePlanning)
	now := time.Now().UTC()
	ps.Status = models.PhaseRunning
	ps.StartedAt = &now

	var missingImages []string
	withImage := 0
	parseSkipped := 0

	for _, path := range files {
		res, err := models.ParseSearchResult(path)
		if err != nil {
			// Per-file failure: skip with a warning, the phase goes on.
			p.log.Warn("skipping malformed result file", "file", path, "error", err)
			parseSkipped++
			continue
		}

		item := &models.WorkItem{
			WorkID:          res.WorkID(path),
			DedupKey:        res.DedupKey(p.opts.DatasetTag, path),
			JSONPath:        path,
			PharmacyName:    strings.TrimSpace(res.PharmacyName),
			State:           strings.TrimSpace(res.State),
			SearchTimestamp: res.Timestamp(),
			Status:          models.ItemPending,
		}

		imagePath := res.ScreenshotPath(path)
		if stat, err := os.Stat(imagePath); err == nil && !stat.IsDir() {
			item.ImagePath = imagePath
			item.HasImage = true
			item.SizeBytes = stat.Size()
			withImage++
		} else {
			if len(missingImages) < missingImageSampleSize {
				missingImages = append(missingImages, imagePath)
			}
		}

		state.Items = append(state.Items, item)
	}

	if len(state.Items) == 0 {
		return nil, fmt.Errorf("all %d result files in %s were malformed", len(files), p.opts.InputDir)
	}

	state.SortItems()
	state.TotalFiles = len(state.Items)
	state.TotalImages = withImage

	if missing := state.TotalFiles - withImage; missing > 0 {
		p.log.Warn("some result files have no screenshot on disk",
			"missing", missing, "sample", missingImages)
	}

	done := time.Now().UTC()
	ps.Status = models.PhaseCompleted
	ps.Processed = len(files)
	ps.Completed = len(state.Items)
	ps.Skipped = parseSkipped
	ps.CompletedAt = &done
	ps.DurationSeconds = done.Sub(now).Seconds()
	state.CurrentPhase = models.PhaseHashing

	p.log.Info("planning complete",
		"run_id", state.RunID,
		"dataset_id", datasetID,
		"total_files", state.TotalFiles,
		"with_image", withImage,
		"without_image", state.TotalFiles-withImage,
		"parse_skipped", parseSkipped)
	return state, nil
}

// collectResultFiles walks the input tree for .json result files. When the
// single-file filter is set, the scan narrows to files with that base name.
func (p *Pipeline) collectResultFiles() ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".json" {
			return nil
		}
		if p.opts.SingleFile != "" && filepath.Base(path) != filepath.Base(p.opts.SingleFile) {
			return nil
		}
		files = append(files, path)
		return nil
	}

	if err := filepath.WalkDir(p.opts.InputDir, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	if p.opts.SingleFile != "" && len(files) > 1 {
		return nil, fmt.Errorf("single-file filter %q matched %d files", p.opts.SingleFile, len(files))
	}
	return files, nil
}
