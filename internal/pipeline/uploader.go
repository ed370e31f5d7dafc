package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dverhagen/pharmsync/internal/models"
	"github.com/dverhagen/pharmsync/internal/store"
)

// uploadPhase prechecks asset existence, then uploads every fingerprint
// not yet present under a bounded concurrency limit. Items sharing a
// fingerprint are grouped so a given content hash is uploaded at most
// once; the content-addressed path makes a race against a concurrent
// separate run harmless but not guaranteed-safe.
func (p *Pipeline) uploadPhase(ctx context.Context, state *models.WorkState) error {
	p.markExistingAssets(ctx, state)

	// Group upload candidates by fingerprint. The first item with a
	// readable source image carries the upload; the rest share the result.
	groups := make(map[string][]*models.WorkItem)
	order := make([]string, 0)
	for _, item := range state.Items {
		if item.Fingerprint == nil || !item.HasImage {
			continue
		}
		if item.AssetExists != nil && *item.AssetExists {
			if item.Status == models.ItemPending {
				item.Status = models.ItemSkipped
			}
			continue
		}
		fp := *item.Fingerprint
		if _, ok := groups[fp]; !ok {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], item)
	}

	ps := state.Phase(models.PhaseUploading)
	if len(order) == 0 {
		p.log.Info("no uploads needed", "items", len(state.Items))
		return nil
	}

	p.log.Info("uploading screenshots",
		"fingerprints", len(order), "concurrency", p.opts.UploadConcurrency)

	var (
		done     atomic.Int64
		uploaded atomic.Int64
		failed   atomic.Int64
	)
	policy := UploadRetryPolicy()

	sem := make(chan struct{}, p.opts.UploadConcurrency)
	var wg sync.WaitGroup

	for _, fp := range order {
		items := groups[fp]
		wg.Add(1)
		sem <- struct{}{}
		go func(fp string, items []*models.WorkItem) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			primary := items[0]
			err := policy.Do(ctx, func() error {
				// A vanished source file falls through to the next item in
				// the group; the bytes are identical by fingerprint.
				var attemptErr error
				for _, item := range items {
					attemptErr = p.uploadAsset(ctx, fp, item)
					if attemptErr == nil || !errors.Is(attemptErr, fs.ErrNotExist) {
						return attemptErr
					}
				}
				return attemptErr
			})

			now := time.Now().UTC()
			if err != nil {
				failed.Add(1)
				for _, item := range items {
					item.RetryCount = policy.MaxAttempts
					item.MarkFailed(err)
					item.LastAttemptAt = &now
				}
				p.log.Error("upload failed after retries",
					"work_id", primary.WorkID, "fingerprint", fp, "error", err)
			} else {
				uploaded.Add(1)
				exists := true
				for i, item := range items {
					item.AssetExists = &exists
					item.LastAttemptAt = &now
					if i == 0 {
						item.Status = models.ItemCompleted
					} else if item.Status == models.ItemPending {
						// Deduplicated against the primary's upload.
						item.Status = models.ItemSkipped
					}
				}
			}

			p.reporter.Tick("uploading", int(done.Add(1)), len(order))
		}(fp, items)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, items := range groups {
		for _, item := range items {
			state.RecordOutcome(item)
		}
	}

	ps.Processed = len(order)
	ps.Completed = int(uploaded.Load())
	ps.Failed = int(failed.Load())
	return nil
}

// uploadAsset puts one screenshot under its content-addressed path and
// registers the asset record with the remote store. Each attempt carries
// its own deadline; a stalled transfer fails the attempt instead of
// holding the worker pool open.
func (p *Pipeline) uploadAsset(ctx context.Context, fingerprint string, item *models.WorkItem) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.UploadTimeout)
	defer cancel()

	f, err := os.Open(item.ImagePath)
	if err != nil {
		return fmt.Errorf("open screenshot: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat screenshot: %w", err)
	}

	ext := filepath.Ext(item.ImagePath)
	objectPath := AssetPath(fingerprint, ext)
	contentType := ContentTypeForExt(ext)

	// Put-if-absent: the path is computed purely from the content hash, so
	// an object already under it is this exact content (e.g. uploaded by a
	// run whose asset registration was lost).
	exists, err := p.blobs.ExistsPrefix(ctx, objectPath)
	if err != nil {
		return err
	}
	if !exists {
		if err := p.blobs.Put(ctx, objectPath, f, stat.Size(), contentType); err != nil {
			return err
		}
	}

	width, height := imageDimensions(item.ImagePath)
	return p.records.CreateAsset(ctx, store.AssetInput{
		Fingerprint: fingerprint,
		Path:        objectPath,
		SizeBytes:   stat.Size(),
		Width:       width,
		Height:      height,
		ContentType: contentType,
	})
}
