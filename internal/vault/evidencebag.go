package vault

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/identity"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// EvidenceManifest describes one exported evidence bag: a Merkle-rooted,
// zipped snapshot of a vault's event log, key manifest, and any
// secondary index, suitable for handing to a third party for
// independent verification.
type EvidenceManifest struct {
	Version    string      `json:"version"`
	RunID      string      `json:"run_id,omitempty"`
	ExportTime time.Time   `json:"export_time"`
	MerkleRoot string      `json:"merkle_root"`
	Files      []FileEntry `json:"files"`
}

// evidenceBagFiles lists a vault's exportable files, relative to its
// root, in the fixed order an evidence bag always carries them. Missing
// files (e.g. no secondary index has ever been built) are skipped.
var evidenceBagFiles = []string{eventsRelPath, keysRelPath, "index.sqlite"}

// ExportEvidenceBag bundles a vault's event log, key manifest, and
// (if present) secondary index into a zip file at zipPath, alongside a
// manifest.json carrying a Merkle root over the bundled files so a
// recipient can detect any tampering introduced after export.
func ExportEvidenceBag(root, zipPath, runID string) error {
	var entries []FileEntry
	var present []string
	for _, rel := range evidenceBagFiles {
		abs := filepath.Join(root, rel)
		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return provaraerr.Wrap(provaraerr.Encoding, err, "statting %s", rel)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return provaraerr.Wrap(provaraerr.Encoding, err, "reading %s", rel)
		}
		entries = append(entries, FileEntry{
			Path:   rel,
			SHA256: identity.Sha256Hex(data),
			Size:   info.Size(),
		})
		present = append(present, rel)
	}

	merkleEntries := make([]identity.MerkleEntry, 0, len(entries))
	for _, e := range entries {
		merkleEntries = append(merkleEntries, identity.MerkleEntry{
			Path:  e.Path,
			Entry: fileEntryValue(e),
		})
	}
	merkleRoot, err := identity.ComputeMerkleRoot(merkleEntries)
	if err != nil {
		return err
	}

	manifest := EvidenceManifest{
		Version:    "1.0",
		RunID:      runID,
		ExportTime: time.Now().UTC(),
		MerkleRoot: merkleRoot,
		Files:      entries,
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "creating evidence bag")
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	manFile, err := w.Create("manifest.json")
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "writing manifest entry")
	}
	enc := json.NewEncoder(manFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "encoding manifest")
	}

	for _, rel := range present {
		if err := copyIntoZip(w, filepath.Join(root, rel), rel); err != nil {
			return err
		}
	}

	return nil
}

func fileEntryValue(e FileEntry) canon.Value {
	return canon.Object(
		canon.Member{Key: "path", Value: canon.String(e.Path)},
		canon.Member{Key: "sha256", Value: canon.String(e.SHA256)},
		canon.Member{Key: "size", Value: canon.Int(e.Size)},
	)
}

func copyIntoZip(w *zip.Writer, srcPath, zipName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "opening %s for export", zipName)
	}
	defer src.Close()

	dst, err := w.Create(zipName)
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "adding %s to evidence bag", zipName)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "copying %s into evidence bag", zipName)
	}
	return nil
}
