// Package signing implements the Ed25519 signature envelope: signing and
// verifying the SHA-256 digest of an event's canonical signing payload,
// plus seed-file persistence and rotation for a local actor identity.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"os"

	"github.com/provara-protocol/provara-core/internal/identity"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// Signer holds one Ed25519 keypair and signs/verifies digests with it.
// Private key material is kept only in memory and as a hex-encoded
// 32-byte seed on disk; the derived public key is what callers publish.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	keyID      string
}

// NewSigner loads the seed at seedPath, or generates and persists a new
// one with 0600 permissions if the file does not exist.
func NewSigner(seedPath string) (*Signer, error) {
	seed, err := loadSeed(seedPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, provaraerr.Wrap(provaraerr.KeyDerivation, err, "loading seed %s", seedPath)
		}
		newSeed := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(newSeed); err != nil {
			return nil, provaraerr.Wrap(provaraerr.Crypto, err, "generating seed")
		}
		if err := saveSeed(seedPath, newSeed); err != nil {
			return nil, provaraerr.Wrap(provaraerr.KeyDerivation, err, "saving seed %s", seedPath)
		}
		seed = newSeed
	}
	return signerFromSeed(seed)
}

func signerFromSeed(seed []byte) (*Signer, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	keyID, err := identity.DeriveKeyID(pub)
	if err != nil {
		return nil, err
	}
	return &Signer{privateKey: priv, publicKey: pub, keyID: keyID}, nil
}

// KeyID returns the bp1_-prefixed identifier for this signer's public key.
func (s *Signer) KeyID() string { return s.keyID }

// PublicKey returns the raw 32-byte Ed25519 public key.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.publicKey }

// PublicKeyB64 returns the public key base64-encoded, the form the vault
// key manifest persists.
func (s *Signer) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// SignDigest signs a 32-byte SHA-256 digest and returns the raw 64-byte
// Ed25519 signature. The digest is signed directly; Ed25519 performs its
// own internal hashing pass over the message it is given.
func (s *Signer) SignDigest(digest [32]byte) []byte {
	return ed25519.Sign(s.privateKey, digest[:])
}

// VerifyDigest reports whether signature is a valid Ed25519 signature by
// publicKey over digest.
func VerifyDigest(publicKey ed25519.PublicKey, digest [32]byte, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, digest[:], signature)
}

// ImportPublicKeyB64 decodes a base64-encoded Ed25519 public key as
// found in a vault's identity/keys.json manifest.
func ImportPublicKeyB64(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "decoding base64 public key")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, provaraerr.New(provaraerr.KeyDerivation, "public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// RotateKey generates a fresh keypair, persists its seed to seedPath, and
// updates the signer in place. It returns the old and new key IDs so
// callers can record the transition (the vault key manifest keeps the
// old key's entry with status "revoked" rather than deleting it).
func (s *Signer) RotateKey(seedPath string) (oldKeyID, newKeyID string, err error) {
	oldKeyID = s.keyID

	newSeed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(newSeed); err != nil {
		return "", "", provaraerr.Wrap(provaraerr.Crypto, err, "generating rotated seed")
	}
	if err := saveSeed(seedPath, newSeed); err != nil {
		return "", "", provaraerr.Wrap(provaraerr.KeyDerivation, err, "saving rotated seed")
	}

	next, err := signerFromSeed(newSeed)
	if err != nil {
		return "", "", err
	}
	s.privateKey = next.privateKey
	s.publicKey = next.publicKey
	s.keyID = next.keyID

	return oldKeyID, s.keyID, nil
}

func loadSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "decoding seed file")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, provaraerr.New(provaraerr.KeyDerivation, "seed file must hold %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

func saveSeed(path string, seed []byte) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0600)
}
