package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dverhagen/pharmsync/internal/models"
	"github.com/dverhagen/pharmsync/internal/store"
)

// importPhase converts every work item with readable source content into
// logical records and persists them in fixed-size batches. Batches run
// strictly in input order: a later batch's conflict fallback may compare
// against a record an earlier batch just inserted.
func (p *Pipeline) importPhase(ctx context.Context, state *models.WorkState) error {
	var records []*models.ImportRecord
	var parsed []*models.WorkItem
	for _, item := range state.Items {
		res, err := models.ParseSearchResult(item.JSONPath)
		if err != nil {
			item.MarkFailed(err)
			state.RecordOutcome(item)
			p.log.Warn("skipping unreadable result file at import",
				"work_id", item.WorkID, "error", err)
			continue
		}
		records = append(records, models.DeriveRecords(res, item, state.DatasetID)...)
		parsed = append(parsed, item)
	}

	ps := state.Phase(models.PhaseImporting)
	if len(records) == 0 {
		p.log.Info("no records to import")
		return nil
	}

	p.log.Info("importing records",
		"records", len(records), "batch_size", p.opts.BatchSize)

	var inserted, updated, skipped, recordsFailed, batchesFailed int

	batches := (len(records) + p.opts.BatchSize - 1) / p.opts.BatchSize
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := b * p.opts.BatchSize
		end := min(start+p.opts.BatchSize, len(records))
		batch := records[start:end]

		rows := make([][]any, len(batch))
		for i, rec := range batch {
			fields := rec.Fields()
			row := make([]any, len(models.RecordFieldNames))
			for j, name := range models.RecordFieldNames {
				row[j] = fields[name]
			}
			rows[i] = row
		}

		err := p.records.BulkInsertRecords(ctx, state.DatasetID, models.RecordFieldNames, rows)
		switch {
		case err == nil:
			inserted += len(batch)
			p.log.Info("batch inserted", "batch", b+1, "of", batches, "records", len(batch))

		case errors.Is(err, store.ErrConflict):
			// The bulk insert is all-or-nothing, so the whole batch falls
			// back to per-record resolution, not just the colliding row.
			p.log.Info("batch conflict, resolving per record",
				"batch", b+1, "of", batches, "records", len(batch))
			ins, upd, skp, fld := p.resolveBatch(ctx, state.DatasetID, batch)
			inserted += ins
			updated += upd
			skipped += skp
			recordsFailed += fld

		default:
			batchesFailed++
			recordsFailed += len(batch)
			for _, rec := range batch {
				rec.Item.MarkFailed(err)
			}
			p.log.Error("batch insert failed",
				"batch", b+1, "of", batches,
				"records", len(batch),
				"fields", models.RecordFieldNames,
				"error", err)
		}
	}

	// An item's end status reflects its persistence outcome: any dropped
	// record fails the whole item so the summary enumerates it.
	for _, item := range parsed {
		if item.Status != models.ItemFailed {
			item.Status = models.ItemCompleted
		}
		state.RecordOutcome(item)
	}

	ps.Processed = len(records)
	ps.Completed = inserted + updated
	ps.Skipped = skipped
	ps.Failed = recordsFailed

	p.log.Info("import complete",
		"inserted", inserted, "updated", updated,
		"skipped", skipped, "failed", recordsFailed,
		"failed_batches", batchesFailed)
	return nil
}

// resolveBatch applies per-record conflict resolution after a bulk
// conflict: look up the existing record by the authoritative key and apply
// last-writer-wins on search timestamp. A failure on one record does not
// stop the rest of the batch.
func (p *Pipeline) resolveBatch(ctx context.Context, datasetID int64, batch []*models.ImportRecord) (inserted, updated, skipped, failed int) {
	for _, rec := range batch {
		existing, err := p.findExisting(ctx, datasetID, rec)
		if err != nil {
			failed++
			rec.Item.MarkFailed(err)
			p.log.Warn("conflict lookup failed",
				"name", rec.SearchName, "state", rec.SearchState, "error", err)
			continue
		}

		if existing == nil {
			if err := p.records.InsertRecord(ctx, datasetID, rec.Fields()); err != nil {
				failed++
				rec.Item.MarkFailed(err)
				p.log.Warn("record insert failed",
					"name", rec.SearchName, "state", rec.SearchState, "error", err)
				continue
			}
			inserted++
			continue
		}

		if newerThan(rec.SearchTimestamp, existingTimestamp(existing)) {
			if err := p.records.UpdateRecord(ctx, existing.ID, rec.Fields()); err != nil {
				failed++
				rec.Item.MarkFailed(err)
				p.log.Warn("record update failed",
					"record_id", existing.ID, "name", rec.SearchName, "error", err)
				continue
			}
			updated++
		} else {
			skipped++
		}
	}
	return inserted, updated, skipped, failed
}

// findExisting queries for a record matching the authoritative conflict
// key (dataset, search_state, search_name, license_number). A nil license
// number matches only records whose license_number is null, never a
// concrete one.
func (p *Pipeline) findExisting(ctx context.Context, datasetID int64, rec *models.ImportRecord) (*store.Record, error) {
	q := store.RecordQuery{
		DatasetID: datasetID,
		Where: map[string]any{
			"search_state": rec.SearchState,
			"search_name":  rec.SearchName,
		},
		Limit: 1,
	}
	if rec.LicenseNumber != nil {
		q.Where["license_number"] = *rec.LicenseNumber
	} else {
		q.WhereNull = []string{"license_number"}
	}

	found, err := p.records.QueryRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// existingTimestamp extracts the stored search timestamp, nil when absent
// or unparseable.
func existingTimestamp(rec *store.Record) *time.Time {
	raw, ok := rec.Fields["search_timestamp"].(string)
	if !ok || raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// newerThan implements the last-writer-wins rule keyed on search
// timestamp: overwrite only when the new timestamp is strictly later, or
// when the new record has a timestamp and the existing one has none.
// Equal, older, or both-missing all skip.
func newerThan(newTS, oldTS *time.Time) bool {
	switch {
	case newTS == nil:
		return false
	case oldTS == nil:
		return true
	}
	return newTS.After(*oldTS)
}
