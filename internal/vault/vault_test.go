package vault

import (
	"os"
	"testing"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/event"
	"github.com/provara-protocol/provara-core/internal/signing"
)

func TestInitAndAppendRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := Init(root); err != nil {
		t.Fatalf("init: %v", err)
	}

	seedPath := root + "/.seed"
	t.Cleanup(func() {
		if err := os.Remove(seedPath); err != nil && !os.IsNotExist(err) {
			t.Logf("cleanup seed: %v", err)
		}
	})
	signer, err := signing.NewSigner(seedPath)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("hello")})
	e := event.New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	if err := e.Sign(signer); err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := AppendEvent(root, e); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := ReadEvents(root)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventID != e.EventID {
		t.Errorf("got event id %s, want %s", events[0].EventID, e.EventID)
	}
}

func TestReadEventsMissingFileIsEmpty(t *testing.T) {
	root := t.TempDir()
	events, err := ReadEvents(root)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if events != nil {
		t.Errorf("expected nil events for a vault with no log, got %v", events)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := Init(root); err != nil {
		t.Fatalf("init: %v", err)
	}

	m, err := ReadManifest(root)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	m.Keys = append(m.Keys, KeyEntry{KeyID: "bp1_deadbeefdeadbeef", Algorithm: "Ed25519", PublicKeyB64: "AA==", Status: "active"})
	if err := WriteManifest(root, m); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	reloaded, err := ReadManifest(root)
	if err != nil {
		t.Fatalf("reload manifest: %v", err)
	}
	entry, ok := reloaded.ResolveKey("bp1_deadbeefdeadbeef")
	if !ok {
		t.Fatal("expected key to be found after reload")
	}
	if entry.Status != "active" {
		t.Errorf("got status %s, want active", entry.Status)
	}
}
