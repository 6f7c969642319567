// Package identity derives content-addressed identifiers (key IDs,
// event IDs, Merkle roots) from canonical JSON, the same way every
// Provara node must so two implementations agree byte-for-byte.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// KeyIDPrefix and EventIDPrefix mark the two content-addressed ID forms
// this protocol uses; neither is a UUID, both are derived from hashes.
const (
	KeyIDPrefix   = "bp1_"
	EventIDPrefix = "evt_"
)

// Sha256 returns the raw SHA-256 digest of data.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Sha256Hex returns the lowercase hex-encoded SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash canonicalizes v and returns the SHA-256 digest of the
// resulting bytes.
func CanonicalHash(v canon.Value) ([32]byte, error) {
	b, err := canon.Canonicalize(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// DeriveKeyID derives a key ID from a raw 32-byte Ed25519 public key:
// "bp1_" followed by the first 8 bytes (16 hex characters) of the
// public key's SHA-256 digest.
func DeriveKeyID(publicKey []byte) (string, error) {
	if len(publicKey) != 32 {
		return "", provaraerr.New(provaraerr.KeyDerivation, "public key must be 32 bytes, got %d", len(publicKey))
	}
	sum := sha256.Sum256(publicKey)
	return KeyIDPrefix + hex.EncodeToString(sum[:8]), nil
}

// DeriveEventID derives an event ID from the canonical JSON of the
// event minus its event_id and signature fields: "evt_" followed by
// the first 12 bytes (24 hex characters) of that document's SHA-256
// digest. unsignedFields must already exclude "event_id" and
// "signature"; this function does not filter them.
func DeriveEventID(unsignedFields canon.Value) (string, error) {
	hash, err := CanonicalHash(unsignedFields)
	if err != nil {
		return "", err
	}
	return EventIDPrefix + hex.EncodeToString(hash[:12]), nil
}

// MerkleEntry is one leaf input to ComputeMerkleRoot: a vault file's
// path plus the canon.Value describing its metadata (size, digest, and
// so on), matching how vault auxiliary-file attestation is computed.
type MerkleEntry struct {
	Path  string
	Entry canon.Value
}

// ComputeMerkleRoot computes the Merkle root over entries sorted by
// path, canonicalizing each entry's metadata as its leaf preimage.
// A level with an odd count greater than one is padded by duplicating
// its last hash; a single entry's leaf hash is itself the root. An empty
// entry list returns the SHA-256 of the empty byte string, not an error.
func ComputeMerkleRoot(entries []MerkleEntry) (string, error) {
	if len(entries) == 0 {
		return Sha256Hex(nil), nil
	}

	sorted := make([]MerkleEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	level := make([][32]byte, len(sorted))
	for i, e := range sorted {
		h, err := CanonicalHash(e.Entry)
		if err != nil {
			return "", err
		}
		level[i] = h
	}
	level = padOdd(level)

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			combined := append(append([]byte{}, level[i][:]...), level[i+1][:]...)
			next = append(next, sha256.Sum256(combined))
		}
		level = padOdd(next)
	}

	return hex.EncodeToString(level[0][:]), nil
}

func padOdd(level [][32]byte) [][32]byte {
	if len(level) > 1 && len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	return level
}
