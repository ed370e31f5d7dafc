package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dverhagen/pharmsync/internal/models"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("screenshot bytes")
	path := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("HashFile() = %s, want %s", got, want)
	}
}

func TestAssetPath(t *testing.T) {
	fp := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

	tests := []struct {
		name string
		ext  string
		want string
	}{
		{"png", ".png", "sha256/ab/cd/" + fp + ".png"},
		{"no dot", "jpg", "sha256/ab/cd/" + fp + ".jpg"},
		{"empty ext", "", "sha256/ab/cd/" + fp + ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssetPath(fp, tt.ext); got != tt.want {
				t.Errorf("AssetPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHashPhase_FillsFingerprints(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir, []resultSpec{
		{name: "a", result: models.SearchResult{PharmacyName: "A", State: "CA"}, image: []byte("same")},
		{name: "b", result: models.SearchResult{PharmacyName: "B", State: "CA"}, image: []byte("same")},
		{name: "c", result: models.SearchResult{PharmacyName: "C", State: "CA"}},
	})

	p := newTestPipeline(t, newFakeRecordStore(), newFakeBlobStore(), Options{InputDir: dir, DatasetTag: "t", HashWorkers: 4})
	state, err := p.plan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := p.hashPhase(context.Background(), state); err != nil {
		t.Fatalf("hashPhase() error = %v", err)
	}

	var fps []string
	for _, item := range state.Items {
		if item.HasImage {
			if item.Fingerprint == nil {
				t.Fatalf("item %s has image but no fingerprint", item.WorkID)
			}
			fps = append(fps, *item.Fingerprint)
		} else if item.Fingerprint != nil {
			t.Errorf("item %s has no image but got a fingerprint", item.WorkID)
		}
	}
	if len(fps) != 2 || fps[0] != fps[1] {
		t.Errorf("byte-identical images produced different fingerprints: %v", fps)
	}
}

func TestHashPhase_IdempotentWhenAllHashed(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir, []resultSpec{
		{name: "a", result: models.SearchResult{PharmacyName: "A", State: "CA"}, image: []byte("x")},
	})

	p := newTestPipeline(t, newFakeRecordStore(), newFakeBlobStore(), Options{InputDir: dir, DatasetTag: "t"})
	state, err := p.plan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.hashPhase(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	first := *state.Items[0].Fingerprint

	// Remove the file: a re-run must not re-read anything already hashed.
	if err := os.Remove(state.Items[0].ImagePath); err != nil {
		t.Fatal(err)
	}
	if err := p.hashPhase(context.Background(), state); err != nil {
		t.Fatalf("re-run hashPhase() error = %v", err)
	}
	if *state.Items[0].Fingerprint != first {
		t.Error("re-run changed an existing fingerprint")
	}
}

func TestHashPhase_IOErrorLeavesFingerprintNil(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir, []resultSpec{
		{name: "a", result: models.SearchResult{PharmacyName: "A", State: "CA"}, image: []byte("x")},
		{name: "b", result: models.SearchResult{PharmacyName: "B", State: "CA"}, image: []byte("y")},
	})

	p := newTestPipeline(t, newFakeRecordStore(), newFakeBlobStore(), Options{InputDir: dir, DatasetTag: "t"})
	state, err := p.plan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Break one screenshot before hashing.
	var broken *models.WorkItem
	for _, item := range state.Items {
		if item.PharmacyName == "A" {
			broken = item
		}
	}
	if err := os.Remove(broken.ImagePath); err != nil {
		t.Fatal(err)
	}

	if err := p.hashPhase(context.Background(), state); err != nil {
		t.Fatalf("hashPhase() error = %v, want per-item recovery", err)
	}
	if broken.Fingerprint != nil {
		t.Error("failed item got a fingerprint")
	}
	if broken.Status != models.ItemPending {
		t.Errorf("failed item status = %s, want pending for next resume", broken.Status)
	}
	for _, item := range state.Items {
		if item != broken && item.HasImage && item.Fingerprint == nil {
			t.Error("healthy item was not hashed after a sibling failure")
		}
	}
}
