package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dverhagen/pharmsync/internal/store"
)

// testLogger returns a quiet logger for pipeline tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecord is one stored row in the fake remote store.
type fakeRecord struct {
	id     int64
	fields map[string]any
}

// fakeRecordStore is an in-memory RecordStore that enforces the uniqueness
// constraint on (dataset, search_state, search_name, license_number) the
// way the remote store does: bulk inserts are all-or-nothing and any
// collision, including within the batch itself, rejects the whole call.
type fakeRecordStore struct {
	mu       sync.Mutex
	datasets map[string]int64
	records  []*fakeRecord
	assets   map[string]store.AssetInput
	nextID   int64

	bulkCalls   int
	insertCalls int
	updateCalls int
	bulkFields  [][]string

	bulkErr   error // forced non-conflict bulk failure
	updateErr error // forced record update failure
	queryErr  error // forced asset existence query failure
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		datasets: make(map[string]int64),
		assets:   make(map[string]store.AssetInput),
	}
}

func conflictKey(datasetID int64, fields map[string]any) string {
	lic := "<null>"
	if v, ok := fields["license_number"]; ok && v != nil {
		lic = fmt.Sprint(v)
	}
	return fmt.Sprintf("%d|%v|%v|%s", datasetID, fields["search_state"], fields["search_name"], lic)
}

func (f *fakeRecordStore) EnsureDataset(_ context.Context, kind, tag string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := kind + "/" + tag
	if id, ok := f.datasets[key]; ok {
		return id, nil
	}
	id := int64(len(f.datasets) + 1)
	f.datasets[key] = id
	return id, nil
}

func (f *fakeRecordStore) BulkInsertRecords(_ context.Context, datasetID int64, fields []string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	f.bulkFields = append(f.bulkFields, fields)

	if f.bulkErr != nil {
		return f.bulkErr
	}

	maps := make([]map[string]any, len(rows))
	seen := make(map[string]struct{})
	for i, row := range rows {
		if len(row) != len(fields) {
			return fmt.Errorf("row %d has %d values for %d fields", i, len(row), len(fields))
		}
		m := make(map[string]any, len(fields))
		for j, name := range fields {
			m[name] = row[j]
		}
		key := conflictKey(datasetID, m)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate key in batch", store.ErrConflict)
		}
		seen[key] = struct{}{}
		for _, existing := range f.records {
			if conflictKey(datasetID, existing.fields) == key {
				return fmt.Errorf("%w: key exists", store.ErrConflict)
			}
		}
		maps[i] = m
	}

	for _, m := range maps {
		f.nextID++
		f.records = append(f.records, &fakeRecord{id: f.nextID, fields: m})
	}
	return nil
}

func (f *fakeRecordStore) InsertRecord(_ context.Context, datasetID int64, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++

	key := conflictKey(datasetID, fields)
	for _, existing := range f.records {
		if conflictKey(datasetID, existing.fields) == key {
			return fmt.Errorf("%w: key exists", store.ErrConflict)
		}
	}
	f.nextID++
	f.records = append(f.records, &fakeRecord{id: f.nextID, fields: fields})
	return nil
}

func (f *fakeRecordStore) UpdateRecord(_ context.Context, recordID int64, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	if f.updateErr != nil {
		return f.updateErr
	}
	for _, rec := range f.records {
		if rec.id == recordID {
			rec.fields = fields
			return nil
		}
	}
	return fmt.Errorf("%w: record %d", store.ErrNotFound, recordID)
}

func (f *fakeRecordStore) QueryRecords(_ context.Context, q store.RecordQuery) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []store.Record
	for _, rec := range f.records {
		if !matches(rec.fields, q) {
			continue
		}
		cp := make(map[string]any, len(rec.fields))
		for k, v := range rec.fields {
			cp[k] = v
		}
		out = append(out, store.Record{ID: rec.id, Fields: cp})
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matches(fields map[string]any, q store.RecordQuery) bool {
	for name, want := range q.Where {
		if got, ok := fields[name]; !ok || got == nil || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	for _, name := range q.WhereNull {
		if got, ok := fields[name]; ok && got != nil {
			return false
		}
	}
	return true
}

func (f *fakeRecordStore) ExistingFingerprints(_ context.Context, fingerprints []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []string
	for _, fp := range fingerprints {
		if _, ok := f.assets[fp]; ok {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) CreateAsset(_ context.Context, asset store.AssetInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[asset.Fingerprint] = asset
	return nil
}

// recordCount returns how many records are stored.
func (f *fakeRecordStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// findByLicense returns the first stored record with the given license
// number, nil when absent.
func (f *fakeRecordStore) findByLicense(license string) *fakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if v, ok := rec.fields["license_number"]; ok && v != nil && fmt.Sprint(v) == license {
			return rec
		}
	}
	return nil
}

// fakeBlobStore is an in-memory BlobStore counting puts.
type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putCalls  int
	failPuts  int  // fail this many puts before succeeding
	blockPuts bool // stall every put until the context expires
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, path string, body io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	f.putCalls++
	fail := false
	if f.failPuts > 0 {
		f.failPuts--
		fail = true
	}
	block := f.blockPuts
	f.mu.Unlock()

	if fail {
		return fmt.Errorf("transient put failure")
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[path] = buf.Bytes()
	f.mu.Unlock()
	return nil
}

func (f *fakeBlobStore) ExistsPrefix(_ context.Context, prefix string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}
