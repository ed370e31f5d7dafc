package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dverhagen/pharmsync/internal/models"
)

// hashPhase computes content fingerprints for every item with a present
// screenshot and no fingerprint yet, using a bounded worker pool. Each
// item is handed to exactly one worker, so item writes never race; only
// the completion counter is shared.
func (p *Pipeline) hashPhase(ctx context.Context, state *models.WorkState) error {
	var pending []*models.WorkItem
	for _, item := range state.Items {
		if item.HasImage && item.Fingerprint == nil {
			pending = append(pending, item)
		}
	}

	ps := state.Phase(models.PhaseHashing)
	if len(pending) == 0 {
		// Idempotent: every fingerprint already populated.
		p.log.Info("hashing already complete", "items", len(state.Items))
		return nil
	}

	p.log.Info("hashing screenshots", "pending", len(pending), "workers", p.opts.HashWorkers)

	var (
		completed atomic.Int64
		failed    atomic.Int64
	)

	itemChan := make(chan *models.WorkItem, len(pending))
	var wg sync.WaitGroup

	for i := 0; i < p.opts.HashWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				if ctx.Err() != nil {
					return
				}

				digest, err := HashFile(item.ImagePath)
				if err != nil {
					// The fingerprint stays nil so the item is retried on
					// the next resume; the batch carries on.
					p.log.Warn("failed to hash screenshot",
						"work_id", item.WorkID,
						"file", filepath.Base(item.ImagePath),
						"error", err)
					failed.Add(1)
					continue
				}
				item.Fingerprint = &digest

				done := completed.Add(1)
				p.reporter.Tick("hashing", int(done), len(pending))
			}
		}()
	}

	for _, item := range pending {
		itemChan <- item
	}
	close(itemChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	ps.Processed = len(pending)
	ps.Completed = int(completed.Load())
	ps.Failed = int(failed.Load())
	return nil
}
