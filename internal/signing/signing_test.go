package signing

import (
	"os"
	"testing"
)

func TestSignerRoundTrip(t *testing.T) {
	seedPath := ".test_seed"
	t.Cleanup(func() {
		if err := os.Remove(seedPath); err != nil && !os.IsNotExist(err) {
			t.Logf("failed to remove test seed: %v", err)
		}
	})

	signer, err := NewSigner(seedPath)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	digest := [32]byte{1, 2, 3, 4}
	sig := signer.SignDigest(digest)

	if !VerifyDigest(signer.PublicKey(), digest, sig) {
		t.Error("expected signature to verify")
	}

	tampered := digest
	tampered[0] ^= 0xff
	if VerifyDigest(signer.PublicKey(), tampered, sig) {
		t.Error("expected signature to fail against a tampered digest")
	}
}

func TestSignerPersistence(t *testing.T) {
	seedPath := ".test_seed_persist"
	t.Cleanup(func() {
		if err := os.Remove(seedPath); err != nil && !os.IsNotExist(err) {
			t.Logf("failed to remove test seed: %v", err)
		}
	})

	signer1, err := NewSigner(seedPath)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signer2, err := NewSigner(seedPath)
	if err != nil {
		t.Fatalf("reload signer: %v", err)
	}
	if signer1.KeyID() != signer2.KeyID() {
		t.Errorf("key id should survive reload: %s != %s", signer1.KeyID(), signer2.KeyID())
	}
}

func TestRotateKey(t *testing.T) {
	seedPath := ".test_seed_rotate"
	t.Cleanup(func() {
		if err := os.Remove(seedPath); err != nil && !os.IsNotExist(err) {
			t.Logf("failed to remove test seed: %v", err)
		}
	})

	signer, err := NewSigner(seedPath)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	digest := [32]byte{9, 9, 9}
	oldSig := signer.SignDigest(digest)
	oldPub := signer.PublicKey()

	oldID, newID, err := signer.RotateKey(seedPath)
	if err != nil {
		t.Fatalf("rotate key: %v", err)
	}
	if oldID == newID {
		t.Error("expected key id to change after rotation")
	}

	if !VerifyDigest(oldPub, digest, oldSig) {
		t.Error("signatures made before rotation must remain valid against the old public key")
	}
	if signer.KeyID() != newID {
		t.Errorf("signer key id should be updated to %s, got %s", newID, signer.KeyID())
	}
}

func TestImportPublicKeyB64RoundTrip(t *testing.T) {
	seedPath := ".test_seed_import"
	t.Cleanup(func() {
		if err := os.Remove(seedPath); err != nil && !os.IsNotExist(err) {
			t.Logf("failed to remove test seed: %v", err)
		}
	})

	signer, err := NewSigner(seedPath)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	imported, err := ImportPublicKeyB64(signer.PublicKeyB64())
	if err != nil {
		t.Fatalf("import public key: %v", err)
	}
	digest := [32]byte{5, 5, 5}
	sig := signer.SignDigest(digest)
	if !VerifyDigest(imported, digest, sig) {
		t.Error("imported public key should verify signatures from the original signer")
	}
}
