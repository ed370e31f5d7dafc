// Package pipeline implements the four-phase import workflow: plan the
// work catalog, hash screenshots, upload missing assets, and batch-import
// logical records, checkpointing the whole state after every phase.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dverhagen/pharmsync/internal/checkpoint"
	"github.com/dverhagen/pharmsync/internal/models"
	"github.com/dverhagen/pharmsync/internal/store"
)

// RecordStore is the remote record store collaborator: datasets, logical
// records, and asset registrations reachable over REST.
type RecordStore interface {
	EnsureDataset(ctx context.Context, kind, tag string) (int64, error)
	BulkInsertRecords(ctx context.Context, datasetID int64, fields []string, rows [][]any) error
	InsertRecord(ctx context.Context, datasetID int64, fields map[string]any) error
	UpdateRecord(ctx context.Context, recordID int64, fields map[string]any) error
	QueryRecords(ctx context.Context, q store.RecordQuery) ([]store.Record, error)
	ExistingFingerprints(ctx context.Context, fingerprints []string) ([]string, error)
	CreateAsset(ctx context.Context, asset store.AssetInput) error
}

// BlobStore is the binary object store collaborator: content-addressed put
// with a prefix existence check for put-if-absent semantics.
type BlobStore interface {
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	ExistsPrefix(ctx context.Context, prefix string) (bool, error)
}

// Options configures one import run.
type Options struct {
	InputDir   string
	DatasetTag string
	// SingleFile restricts the scan to exactly one result file by name.
	SingleFile string
	// TraceCSV, when set, writes a per-item trace file after the run.
	TraceCSV string

	HashWorkers       int // default 16
	UploadConcurrency int // default 10
	BatchSize         int // default 25

	// UploadTimeout bounds each upload attempt (object put plus asset
	// registration) so a stalled transfer cannot wedge the worker pool.
	UploadTimeout time.Duration // default 5m

	// ProgressEvery is the completion interval between progress lines.
	ProgressEvery int // default 50
}

func (o *Options) applyDefaults() {
	if o.HashWorkers <= 0 {
		o.HashWorkers = 16
	}
	if o.UploadConcurrency <= 0 {
		o.UploadConcurrency = 10
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 5 * time.Minute
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 50
	}
}

// Pipeline owns one import run: its stores, checkpoint file, logger, and
// counters. No ambient globals; every phase receives this context object.
type Pipeline struct {
	records  RecordStore
	blobs    BlobStore
	ckpt     *checkpoint.Store
	log      *slog.Logger
	reporter *Reporter
	opts     Options
}

// New creates a pipeline.
func New(records RecordStore, blobs BlobStore, ckpt *checkpoint.Store, logger *slog.Logger, opts Options) *Pipeline {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		records:  records,
		blobs:    blobs,
		ckpt:     ckpt,
		log:      logger,
		reporter: NewReporter(logger, opts.ProgressEvery),
		opts:     opts,
	}
}

// Run executes a fresh import: plan, then all later phases in order.
func (p *Pipeline) Run(ctx context.Context) (*models.WorkState, error) {
	state, err := p.plan(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.ckpt.Save(state); err != nil {
		return state, fmt.Errorf("save checkpoint after planning: %w", err)
	}
	return state, p.runFrom(ctx, state, models.PhaseHashing)
}

// Resume reloads the checkpoint wholesale and re-enters the earliest phase
// whose recorded status is not completed. Phases that completed previously
// are never redone.
func (p *Pipeline) Resume(ctx context.Context) (*models.WorkState, error) {
	state, err := p.ckpt.Load()
	if err != nil {
		return nil, err
	}

	phase, ok := state.FirstIncompletePhase()
	if !ok {
		p.log.Info("checkpoint already complete, nothing to resume", "run_id", state.RunID)
		p.reporter.Summary(state)
		return state, nil
	}
	if phase == models.PhasePlanning {
		// A checkpoint is only written after planning completes, so an
		// incomplete planning phase means the checkpoint cannot be resumed.
		return nil, fmt.Errorf("checkpoint has no completed planning phase; start a fresh run")
	}

	p.log.Info("resuming run", "run_id", state.RunID, "phase", phase, "items", len(state.Items))
	return state, p.runFrom(ctx, state, phase)
}

// runFrom executes phases from start onward, in order, saving the
// checkpoint after each.
func (p *Pipeline) runFrom(ctx context.Context, state *models.WorkState, start models.Phase) error {
	phaseFns := map[models.Phase]func(context.Context, *models.WorkState) error{
		models.PhaseHashing:   p.hashPhase,
		models.PhaseUploading: p.uploadPhase,
		models.PhaseImporting: p.importPhase,
	}

	active := false
	for _, phase := range models.Phases {
		if phase == start {
			active = true
		}
		if !active || phase == models.PhasePlanning {
			continue
		}
		if err := p.runPhase(ctx, state, phase, phaseFns[phase]); err != nil {
			return err
		}
	}

	p.reporter.Summary(state)
	if p.opts.TraceCSV != "" {
		if err := WriteTraceCSV(p.opts.TraceCSV, state); err != nil {
			p.log.Warn("failed to write trace CSV", "path", p.opts.TraceCSV, "error", err)
		}
	}
	return nil
}

// runPhase wraps one phase with status bookkeeping and checkpointing. The
// checkpoint save after a phase is the unit of crash recovery: a crash
// between phases loses at most one phase's progress.
func (p *Pipeline) runPhase(ctx context.Context, state *models.WorkState, phase models.Phase, fn func(context.Context, *models.WorkState) error) error {
	ps := state.Phase(phase)
	now := time.Now().UTC()
	ps.Status = models.PhaseRunning
	ps.StartedAt = &now
	state.CurrentPhase = phase

	p.reporter.PhaseBanner(string(phase))
	err := fn(ctx, state)

	done := time.Now().UTC()
	ps.CompletedAt = &done
	ps.DurationSeconds = done.Sub(now).Seconds()
	if err != nil {
		ps.Status = models.PhaseFailed
	} else {
		ps.Status = models.PhaseCompleted
	}

	if saveErr := p.ckpt.Save(state); saveErr != nil {
		if err == nil {
			return fmt.Errorf("save checkpoint after %s: %w", phase, saveErr)
		}
		p.log.Error("failed to save checkpoint after failed phase", "phase", phase, "error", saveErr)
	}

	if err != nil {
		return fmt.Errorf("phase %s: %w", phase, err)
	}
	p.log.Info("phase completed", "phase", phase,
		"processed", ps.Processed, "completed", ps.Completed,
		"failed", ps.Failed, "skipped", ps.Skipped,
		"duration", done.Sub(now).Round(time.Millisecond))
	return nil
}
