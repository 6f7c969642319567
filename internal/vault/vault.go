// Package vault reads and writes the on-disk layout an external CLI
// collaborator expects: an append-only event log and an identity
// manifest, both plain files under a vault root directory.
package vault

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/event"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

const (
	eventsRelPath = "events/events.ndjson"
	keysRelPath   = "identity/keys.json"
)

// KeyEntry is one actor key recorded in a vault's identity manifest.
type KeyEntry struct {
	KeyID        string `json:"key_id"`
	Algorithm    string `json:"algorithm"`
	PublicKeyB64 string `json:"public_key_b64"`
	Status       string `json:"status"`
}

// Manifest is the parsed form of <vault>/identity/keys.json.
type Manifest struct {
	Keys []KeyEntry `json:"keys"`
}

// FileEntry describes one vault-managed file for Merkle attestation:
// its path relative to the vault root, its SHA-256 digest hex, and its
// size in bytes.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// EventsPath returns the canonical path to a vault's event log.
func EventsPath(root string) string { return filepath.Join(root, eventsRelPath) }

// KeysPath returns the canonical path to a vault's key manifest.
func KeysPath(root string) string { return filepath.Join(root, keysRelPath) }

// Init creates the directory layout for a fresh vault at root: the
// events/ and identity/ subdirectories and an empty key manifest. It
// does not create events.ndjson, since an empty file and a missing one
// mean the same thing to ReadEvents.
func Init(root string) error {
	if err := os.MkdirAll(filepath.Join(root, "events"), 0o755); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "creating events directory")
	}
	if err := os.MkdirAll(filepath.Join(root, "identity"), 0o755); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "creating identity directory")
	}
	if _, err := os.Stat(KeysPath(root)); os.IsNotExist(err) {
		if err := WriteManifest(root, &Manifest{Keys: []KeyEntry{}}); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvents reads every event in a vault's event log in file order. A
// missing events.ndjson is treated as an empty log, not an error.
func ReadEvents(root string) ([]*event.Event, error) {
	f, err := os.Open(EventsPath(root))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "opening event log")
	}
	defer f.Close()

	var events []*event.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, provaraerr.Wrap(provaraerr.InvalidEvent, err, "parsing event log line")
		}
		events = append(events, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "reading event log")
	}
	return events, nil
}

// AppendEvent appends a single canonical-JSON-encoded event line to a
// vault's event log, creating the file if it does not exist yet.
func AppendEvent(root string, e *event.Event) error {
	f, err := os.OpenFile(EventsPath(root), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "opening event log for append")
	}
	defer f.Close()

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	v, err := canon.Parse(raw)
	if err != nil {
		return err
	}
	data, err := canon.Canonicalize(v)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "appending event")
	}
	return nil
}

// ReadManifest parses a vault's identity/keys.json. A missing file
// yields an empty manifest, not an error.
func ReadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(KeysPath(root))
	if os.IsNotExist(err) {
		return &Manifest{Keys: []KeyEntry{}}, nil
	}
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "reading key manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, provaraerr.Wrap(provaraerr.InvalidJSON, err, "parsing key manifest")
	}
	return &m, nil
}

// WriteManifest writes m to a vault's identity/keys.json, pretty-printed
// for operator readability since this file is edited by hand as often
// as it is generated.
func WriteManifest(root string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(KeysPath(root)), 0o755); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "creating identity directory")
	}
	if err := os.WriteFile(KeysPath(root), append(data, '\n'), 0o644); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "writing key manifest")
	}
	return nil
}

// ResolveKey looks up the public key registered for keyID in a vault's
// manifest, matching the event.KeyResolver signature so it can be
// passed straight to event.VerifyChainAndSignatures.
func (m *Manifest) ResolveKey(keyID string) (KeyEntry, bool) {
	for _, k := range m.Keys {
		if k.KeyID == keyID {
			return k, true
		}
	}
	return KeyEntry{}, false
}
