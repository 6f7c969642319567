package identity

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/provara-protocol/provara-core/internal/canon"
)

func TestDeriveKeyIDVector(t *testing.T) {
	pub, err := hex.DecodeString("42e47a04929e14ec37c1a9bedf7107030c22804f39908456b96562a81bc2e5c7")
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	got, err := DeriveKeyID(pub)
	if err != nil {
		t.Fatalf("derive key id: %v", err)
	}
	want := "bp1_5c99599d178e7632"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestDeriveKeyIDRejectsWrongLength(t *testing.T) {
	_, err := DeriveKeyID([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for short public key")
	}
}

func TestComputeMerkleRootVector(t *testing.T) {
	entries := []MerkleEntry{
		{
			Path: "a.txt",
			Entry: canon.Object(
				canon.Member{Key: "path", Value: canon.String("a.txt")},
				canon.Member{Key: "sha256", Value: canon.String("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")},
				canon.Member{Key: "size", Value: canon.Int(0)},
			),
		},
		{
			Path: "b.txt",
			Entry: canon.Object(
				canon.Member{Key: "path", Value: canon.String("b.txt")},
				canon.Member{Key: "sha256", Value: canon.String("315f5bdb76d078c43b8ac00c33e22f06d20353842d059013e96196a84f33161")},
				canon.Member{Key: "size", Value: canon.Int(1)},
			),
		},
	}

	got, err := ComputeMerkleRoot(entries)
	if err != nil {
		t.Fatalf("compute merkle root: %v", err)
	}
	want := "fa577a0bb290df978337de3342ebc17fcd3ad261f9ece7ce41622c36ccc2ed03"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeMerkleRootEmpty(t *testing.T) {
	got, err := ComputeMerkleRoot(nil)
	if err != nil {
		t.Fatalf("compute merkle root: %v", err)
	}
	want := Sha256Hex(nil)
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeMerkleRootOrderIndependent(t *testing.T) {
	entryA := MerkleEntry{Path: "a.txt", Entry: canon.Object(canon.Member{Key: "path", Value: canon.String("a.txt")})}
	entryB := MerkleEntry{Path: "b.txt", Entry: canon.Object(canon.Member{Key: "path", Value: canon.String("b.txt")})}

	r1, err := ComputeMerkleRoot([]MerkleEntry{entryA, entryB})
	if err != nil {
		t.Fatalf("compute merkle root: %v", err)
	}
	r2, err := ComputeMerkleRoot([]MerkleEntry{entryB, entryA})
	if err != nil {
		t.Fatalf("compute merkle root: %v", err)
	}
	if r1 != r2 {
		t.Errorf("merkle root should not depend on input order: %s != %s", r1, r2)
	}
}

func BenchmarkComputeMerkleRootLargeEntryCount(b *testing.B) {
	const fileCount = 4096
	entries := make([]MerkleEntry, fileCount)
	for i := 0; i < fileCount; i++ {
		path := fmt.Sprintf("file-%04d.txt", i)
		entries[i] = MerkleEntry{
			Path: path,
			Entry: canon.Object(
				canon.Member{Key: "path", Value: canon.String(path)},
				canon.Member{Key: "sha256", Value: canon.String(Sha256Hex([]byte(path)))},
				canon.Member{Key: "size", Value: canon.Int(int64(len(path)))},
			),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ComputeMerkleRoot(entries); err != nil {
			b.Fatalf("compute merkle root: %v", err)
		}
	}
}
