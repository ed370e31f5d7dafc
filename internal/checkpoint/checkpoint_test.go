package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dverhagen/pharmsync/internal/models"
)

func sampleState() *models.WorkState {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	fp := "aabbcc"
	errMsg := "upload failed"

	state := models.NewWorkState("run-abc123", "states-2024-05", 42)
	state.TotalFiles = 4
	state.TotalImages = 3
	state.CurrentPhase = models.PhaseUploading
	state.Phase(models.PhasePlanning).Status = models.PhaseCompleted
	state.Phase(models.PhaseHashing).Status = models.PhaseCompleted
	state.Phase(models.PhaseUploading).Status = models.PhaseRunning
	state.Items = []*models.WorkItem{
		{WorkID: "ca_alpha", State: "CA", PharmacyName: "Alpha", Status: models.ItemPending},
		{WorkID: "ca_beta", State: "CA", PharmacyName: "Beta", Status: models.ItemCompleted, SearchTimestamp: &ts, Fingerprint: &fp},
		{WorkID: "tx_gamma", State: "TX", PharmacyName: "Gamma", Status: models.ItemFailed, LastError: &errMsg},
		{WorkID: "tx_delta", State: "TX", PharmacyName: "Delta", Status: models.ItemSkipped},
	}
	state.FailedItemIDs = []string{"tx_gamma"}
	state.CompletedItemIDs = []string{"ca_beta"}
	return state
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "work_state.json"))

	want := sampleState()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.RunID != want.RunID || got.DatasetID != want.DatasetID || got.DatasetTag != want.DatasetTag {
		t.Errorf("run identity = (%s, %d, %s), want (%s, %d, %s)",
			got.RunID, got.DatasetID, got.DatasetTag, want.RunID, want.DatasetID, want.DatasetTag)
	}
	if got.CurrentPhase != models.PhaseUploading {
		t.Errorf("CurrentPhase = %s, want %s", got.CurrentPhase, models.PhaseUploading)
	}
	if len(got.Items) != len(want.Items) {
		t.Fatalf("got %d items, want %d", len(got.Items), len(want.Items))
	}
	for i, item := range got.Items {
		if item.Status != want.Items[i].Status {
			t.Errorf("item %s status = %s, want %s", item.WorkID, item.Status, want.Items[i].Status)
		}
	}
	if got.Items[1].SearchTimestamp == nil || !got.Items[1].SearchTimestamp.Equal(*want.Items[1].SearchTimestamp) {
		t.Errorf("item timestamp = %v, want %v", got.Items[1].SearchTimestamp, want.Items[1].SearchTimestamp)
	}
	if got.Items[1].Fingerprint == nil || *got.Items[1].Fingerprint != "aabbcc" {
		t.Errorf("fingerprint not preserved: %v", got.Items[1].Fingerprint)
	}
	if got.Phase(models.PhaseHashing).Status != models.PhaseCompleted {
		t.Errorf("hashing status = %s, want completed", got.Phase(models.PhaseHashing).Status)
	}
	if got.Phase(models.PhaseImporting).Status != models.PhasePending {
		t.Errorf("importing status = %s, want pending", got.Phase(models.PhaseImporting).Status)
	}
}

func TestSaveStampsUpdatedAt(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "work_state.json"))

	state := sampleState()
	before := state.UpdatedAt
	time.Sleep(5 * time.Millisecond)
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !state.UpdatedAt.After(before) {
		t.Errorf("UpdatedAt = %v, want later than %v", state.UpdatedAt, before)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "work_state.json"))

	state := sampleState()
	if err := store.Save(state); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	state.CurrentPhase = models.PhaseImporting
	if err := store.Save(state); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CurrentPhase != models.PhaseImporting {
		t.Errorf("CurrentPhase = %s, want %s", got.CurrentPhase, models.PhaseImporting)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "work_state.json"))

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("got %d files, want only the checkpoint", len(entries))
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoadRejectsUnknownEnumTags(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			"unknown item status",
			`{"run_id":"r","items":[{"work_id":"x","status":"exploded"}],"phases":{}}`,
		},
		{
			"unknown phase state",
			`{"run_id":"r","items":[],"phases":{"hashing":{"status":"wedged"}}}`,
		},
		{
			"unknown current phase",
			`{"run_id":"r","items":[],"phases":{},"current_phase":"teleporting"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "work_state.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			if _, err := NewStore(path).Load(); err == nil {
				t.Error("Load() succeeded, want parse error")
			}
		})
	}
}

func TestLoadCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work_state.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Error("Load() succeeded on corrupt file, want error")
	}
}
