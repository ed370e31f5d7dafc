package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dverhagen/pharmsync/internal/checkpoint"
	"github.com/dverhagen/pharmsync/internal/models"
	"github.com/dverhagen/pharmsync/internal/store"
)

// resultSpec describes one test fixture: a result file and optionally its
// companion screenshot.
type resultSpec struct {
	name    string // file name without extension
	result  models.SearchResult
	image   []byte // nil = no screenshot on disk
	rawJSON string // overrides result when set, for malformed fixtures
}

// writeFixtures materializes result files (and screenshots) in dir.
func writeFixtures(t *testing.T, dir string, specs []resultSpec) {
	t.Helper()
	for _, spec := range specs {
		jsonPath := filepath.Join(dir, spec.name+".json")

		data := []byte(spec.rawJSON)
		if spec.rawJSON == "" {
			var err error
			data, err = json.Marshal(spec.result)
			if err != nil {
				t.Fatalf("marshal fixture %s: %v", spec.name, err)
			}
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			t.Fatalf("write fixture %s: %v", spec.name, err)
		}

		if spec.image != nil {
			imgPath := filepath.Join(dir, spec.name+".png")
			if err := os.WriteFile(imgPath, spec.image, 0644); err != nil {
				t.Fatalf("write fixture image %s: %v", spec.name, err)
			}
		}
	}
}

// newTestPipeline wires a pipeline over fakes with a checkpoint in a temp
// dir.
func newTestPipeline(t *testing.T, records *fakeRecordStore, blobs *fakeBlobStore, opts Options) *Pipeline {
	t.Helper()
	ckpt := checkpoint.NewStore(filepath.Join(t.TempDir(), "work_state.json"))
	return New(records, blobs, ckpt, testLogger(), opts)
}

// recordAsset builds a minimal registered asset for a fingerprint.
func recordAsset(fp string) store.AssetInput {
	return store.AssetInput{
		Fingerprint: fp,
		Path:        AssetPath(fp, "png"),
		ContentType: "image/png",
	}
}
