package vault

import (
	"archive/zip"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestExportEvidenceBagContainsManifestAndFiles(t *testing.T) {
	root := t.TempDir()
	if err := Init(root); err != nil {
		t.Fatalf("init: %v", err)
	}

	zipPath := filepath.Join(t.TempDir(), "bag.zip")
	if err := ExportEvidenceBag(root, zipPath, "run-1"); err != nil {
		t.Fatalf("export: %v", err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}

	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["manifest.json"] {
		t.Fatalf("expected manifest.json in evidence bag, got %v", names)
	}
	if !found[keysRelPath] {
		t.Errorf("expected %s in evidence bag, got %v", keysRelPath, names)
	}
	if found[eventsRelPath] {
		t.Errorf("did not expect %s in evidence bag for a vault with no events yet, got %v", eventsRelPath, names)
	}

	for _, f := range r.File {
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open manifest: %v", err)
		}
		defer rc.Close()
		var manifest EvidenceManifest
		if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
			t.Fatalf("decode manifest: %v", err)
		}
		if manifest.RunID != "run-1" {
			t.Errorf("got run id %s, want run-1", manifest.RunID)
		}
		if manifest.MerkleRoot == "" {
			t.Error("expected a non-empty merkle root")
		}
		if len(manifest.Files) == 0 {
			t.Error("expected at least one file entry in the manifest")
		}
	}
}
