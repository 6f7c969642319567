package event

import (
	"crypto/ed25519"
	"os"
	"testing"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/signing"
)

func newTestSigner(t *testing.T, path string) *signing.Signer {
	t.Helper()
	t.Cleanup(func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			t.Logf("failed to remove test seed: %v", err)
		}
	})
	signer, err := signing.NewSigner(path)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t, ".test_event_seed")

	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("hello")})
	e := New("OBSERVATION", signer.KeyID(), nil, nil, payload)

	if err := e.Sign(signer); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if e.EventID == "" {
		t.Fatal("expected event id to be derived")
	}

	ok, err := e.VerifySignature(signer.PublicKey())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify")
	}
}

func TestVerifySignatureTamperDetection(t *testing.T) {
	signer := newTestSigner(t, ".test_event_seed_tamper")

	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("hello")})
	e := New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	if err := e.Sign(signer); err != nil {
		t.Fatalf("sign: %v", err)
	}

	e.Payload = canon.Object(canon.Member{Key: "claim", Value: canon.String("tampered")})
	ok, err := e.VerifySignature(signer.PublicKey())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("expected tampered payload to fail verification")
	}
}

func TestVerifyChainValid(t *testing.T) {
	signer := newTestSigner(t, ".test_event_seed_chain")

	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("a")})
	e1 := New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	if err := e1.Sign(signer); err != nil {
		t.Fatalf("sign e1: %v", err)
	}

	prev := e1.EventID
	e2 := New("OBSERVATION", signer.KeyID(), &prev, nil, payload)
	if err := e2.Sign(signer); err != nil {
		t.Fatalf("sign e2: %v", err)
	}

	result := VerifyChain([]*Event{e1, e2})
	if !result.Valid {
		t.Errorf("expected valid chain, got error: %s", result.ErrorMessage)
	}
}

func TestVerifyChainMultipleGenesis(t *testing.T) {
	signer := newTestSigner(t, ".test_event_seed_genesis")
	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("a")})

	e1 := New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	_ = e1.Sign(signer)
	e2 := New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	_ = e2.Sign(signer)

	result := VerifyChain([]*Event{e1, e2})
	if result.Valid {
		t.Error("expected multiple genesis events for the same actor to be invalid")
	}
}

func TestVerifyChainBrokenLink(t *testing.T) {
	signer := newTestSigner(t, ".test_event_seed_broken")
	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("a")})

	e1 := New("OBSERVATION", signer.KeyID(), nil, nil, payload)
	_ = e1.Sign(signer)

	bogus := "evt_000000000000000000000000"
	e2 := New("OBSERVATION", signer.KeyID(), &bogus, nil, payload)
	_ = e2.Sign(signer)

	result := VerifyChain([]*Event{e1, e2})
	if result.Valid {
		t.Error("expected a swapped prev_event_hash to break the chain")
	}
}

func TestVerifyChainAndSignaturesDetectsSwappedKey(t *testing.T) {
	signerA := newTestSigner(t, ".test_event_seed_a")
	signerB := newTestSigner(t, ".test_event_seed_b")

	payload := canon.Object(canon.Member{Key: "claim", Value: canon.String("a")})
	e1 := New("OBSERVATION", signerA.KeyID(), nil, nil, payload)
	if err := e1.Sign(signerA); err != nil {
		t.Fatalf("sign: %v", err)
	}

	resolve := func(actor string) (ed25519.PublicKey, error) { return signerB.PublicKey(), nil }
	result, err := VerifyChainAndSignatures([]*Event{e1}, resolve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Error("expected a signature checked against another actor's key to fail verification")
	}
}
