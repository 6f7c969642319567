package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/config"
	"github.com/provara-protocol/provara-core/internal/event"
	"github.com/provara-protocol/provara-core/internal/identity"
	"github.com/provara-protocol/provara-core/internal/logging"
	"github.com/provara-protocol/provara-core/internal/reducer"
	"github.com/provara-protocol/provara-core/internal/signing"
	"github.com/provara-protocol/provara-core/internal/vault"
	"github.com/provara-protocol/provara-core/internal/vaultindex"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "create-vault":
		createVaultCommand()
	case "status":
		statusCommand()
	case "sign-event":
		signEventCommand()
	case "verify-vault":
		verifyVaultCommand()
	case "canonical-sha256":
		canonicalSha256Command()
	case "rekey":
		rekeyCommand()
	case "reindex":
		reindexCommand()
	case "export-evidence":
		exportEvidenceCommand()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("provara - Sovereign event-vault command line tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  provara create-vault <dir>        Initialize a new vault at dir")
	fmt.Println("  provara status <dir>              Show vault state summary")
	fmt.Println("  provara sign-event <dir> <file>    Sign a JSON event and append it to the vault")
	fmt.Println("  provara verify-vault <dir>         Verify the chain and signatures of every actor")
	fmt.Println("  provara canonical-sha256           Canonicalize JSON from stdin and print its SHA-256")
	fmt.Println("  provara rekey <dir>                Rotate the vault's own Ed25519 signing key")
	fmt.Println("  provara reindex <dir>              Rebuild the vault's SQLite secondary index")
	fmt.Println("  provara export-evidence <dir> <out.zip> [run-id]")
	fmt.Println("                                     Export a Merkle-attested evidence bag")
}

// fail logs a structured critical entry for token, then reports err to the
// operator and exits. Usage errors, event fold failures and a failed
// chain verification exit directly instead of going through fail.
func fail(component, root, token string, err error) {
	logging.Critical(token, logging.Fields{Component: component, VaultPath: root, Error: err.Error()})
	log.Fatalf("%s: %v", strings.ReplaceAll(token, "_", " "), err)
}

func vaultArg() string {
	if len(os.Args) < 3 {
		fmt.Println("missing vault directory argument")
		os.Exit(1)
	}
	return os.Args[2]
}

func createVaultCommand() {
	root := vaultArg()
	if err := vault.Init(root); err != nil {
		fail("cmd", root, "vault_init_failed", err)
	}

	signer, err := signing.NewSigner(filepath.Join(root, ".seed"))
	if err != nil {
		fail("cmd", root, "signing_key_provision_failed", err)
	}

	manifest, err := vault.ReadManifest(root)
	if err != nil {
		fail("cmd", root, "key_manifest_read_failed", err)
	}
	manifest.Keys = append(manifest.Keys, vault.KeyEntry{
		KeyID:        signer.KeyID(),
		Algorithm:    "Ed25519",
		PublicKeyB64: signer.PublicKeyB64(),
		Status:       "active",
	})
	if err := vault.WriteManifest(root, manifest); err != nil {
		fail("cmd", root, "key_manifest_write_failed", err)
	}

	logging.Info("vault_created", logging.Fields{Component: "cmd", VaultPath: root, ActorID: signer.KeyID()})
	fmt.Printf("initialized vault at %s\n", root)
	fmt.Printf("actor key: %s\n", signer.KeyID())
}

func statusCommand() {
	root := vaultArg()

	cfg, err := config.Load(filepath.Join(root, "provara.yaml"))
	if err != nil {
		fail("cmd", root, "vault_config_load_failed", err)
	}

	events, err := vault.ReadEvents(root)
	if err != nil {
		fail("cmd", root, "event_log_read_failed", err)
	}

	threshold := cfg.Conflict.ConfidenceThreshold
	r := reducer.New(&threshold)
	payloads := make([]canon.Value, 0, len(events))
	for _, e := range events {
		v, err := eventToValue(e)
		if err != nil {
			logging.Error("event_fold_failed", logging.Fields{Component: "cmd", VaultPath: root, EventID: e.EventID, Error: err.Error()})
			log.Fatalf("failed to fold event %s: %v", e.EventID, err)
		}
		payloads = append(payloads, v)
	}
	r.ApplyEvents(payloads)

	fmt.Println("Vault Status")
	fmt.Println("============")
	fmt.Printf("Events:     %d\n", r.State.Metadata.EventCount)
	if r.State.Metadata.LastEventID != nil {
		fmt.Printf("Last event: %s\n", *r.State.Metadata.LastEventID)
	}
	if r.State.Metadata.StateHash != nil {
		fmt.Printf("State hash: %s\n", *r.State.Metadata.StateHash)
	}
	fmt.Printf("Canonical claims: %d\n", len(r.State.Canonical))
	fmt.Printf("Local claims:     %d\n", len(r.State.Local))
	fmt.Printf("Contested claims: %d\n", len(r.State.Contested))
	if ignored := r.IgnoredTypes(); len(ignored) > 0 {
		fmt.Printf("Ignored event types: %v\n", ignored)
	}
}

func signEventCommand() {
	if len(os.Args) < 4 {
		fmt.Println("usage: provara sign-event <dir> <event.json>")
		os.Exit(1)
	}
	root := os.Args[2]
	eventPath := os.Args[3]

	data, err := os.ReadFile(eventPath)
	if err != nil {
		fail("cmd", root, "event_file_read_failed", err)
	}
	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		fail("cmd", root, "event_file_parse_failed", err)
	}

	signer, err := signing.NewSigner(filepath.Join(root, ".seed"))
	if err != nil {
		fail("cmd", root, "signing_key_load_failed", err)
	}
	if e.Actor == "" {
		e.Actor = signer.KeyID()
	}

	if err := e.Sign(signer); err != nil {
		fail("cmd", root, "event_sign_failed", err)
	}
	if err := vault.AppendEvent(root, &e); err != nil {
		fail("cmd", root, "event_append_failed", err)
	}

	logging.Info("event_signed", logging.Fields{Component: "cmd", VaultPath: root, ActorID: e.Actor, EventID: e.EventID})
	fmt.Printf("signed and appended event %s\n", e.EventID)
}

func verifyVaultCommand() {
	root := vaultArg()

	events, err := vault.ReadEvents(root)
	if err != nil {
		fail("cmd", root, "event_log_read_failed", err)
	}
	manifest, err := vault.ReadManifest(root)
	if err != nil {
		fail("cmd", root, "key_manifest_read_failed", err)
	}

	result, err := event.VerifyChainAndSignatures(events, func(actor string) (ed25519.PublicKey, error) {
		entry, ok := manifest.ResolveKey(actor)
		if !ok {
			return nil, fmt.Errorf("no trusted key registered for actor %s", actor)
		}
		return signing.ImportPublicKeyB64(entry.PublicKeyB64)
	})
	if err != nil {
		fail("cmd", root, "chain_verification_error", err)
	}

	if result.Valid {
		logging.Info("vault_verified", logging.Fields{Component: "cmd", VaultPath: root})
		fmt.Printf("chain valid (%d events verified)\n", result.TotalEvents)
	} else {
		logging.Error("chain_verification_failed", logging.Fields{
			Component: "cmd",
			VaultPath: root,
			EventID:   result.FailedAtID,
			Error:     result.ErrorMessage,
		})
		fmt.Println("chain verification failed")
		fmt.Printf("  error: %s\n", result.ErrorMessage)
		if result.FailedAtID != "" {
			fmt.Printf("  failed at event: %s\n", result.FailedAtID)
		}
		os.Exit(1)
	}
}

func canonicalSha256Command() {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fail("cmd", "", "stdin_read_failed", err)
	}
	v, err := canon.Parse(data)
	if err != nil {
		fail("cmd", "", "json_parse_failed", err)
	}
	digest, err := identity.CanonicalHash(v)
	if err != nil {
		fail("cmd", "", "canonicalize_failed", err)
	}
	fmt.Println(hex.EncodeToString(digest[:]))
}

func rekeyCommand() {
	root := vaultArg()

	signer, err := signing.NewSigner(filepath.Join(root, ".seed"))
	if err != nil {
		fail("cmd", root, "signing_key_load_failed", err)
	}
	oldKeyID, newKeyID, err := signer.RotateKey(filepath.Join(root, ".seed"))
	if err != nil {
		fail("cmd", root, "key_rotation_failed", err)
	}

	manifest, err := vault.ReadManifest(root)
	if err != nil {
		fail("cmd", root, "key_manifest_read_failed", err)
	}
	manifest.Keys = append(manifest.Keys, vault.KeyEntry{
		KeyID:        newKeyID,
		Algorithm:    "Ed25519",
		PublicKeyB64: signer.PublicKeyB64(),
		Status:       "active",
	})
	for i, k := range manifest.Keys {
		if k.KeyID == oldKeyID {
			manifest.Keys[i].Status = "revoked"
		}
	}
	if err := vault.WriteManifest(root, manifest); err != nil {
		fail("cmd", root, "key_manifest_write_failed", err)
	}

	logging.Info("key_rotated", logging.Fields{Component: "cmd", VaultPath: root, ActorID: newKeyID})
	fmt.Printf("rotated signing key: %s -> %s\n", oldKeyID, newKeyID)
}

func reindexCommand() {
	root := vaultArg()

	events, err := vault.ReadEvents(root)
	if err != nil {
		fail("cmd", root, "event_log_read_failed", err)
	}

	idx, err := vaultindex.Open(filepath.Join(root, "index.sqlite"))
	if err != nil {
		fail("cmd", root, "index_open_failed", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(events); err != nil {
		fail("cmd", root, "index_rebuild_failed", err)
	}

	payloads := make([]canon.Value, 0, len(events))
	for _, e := range events {
		v, err := eventToValue(e)
		if err != nil {
			logging.Error("event_fold_failed", logging.Fields{Component: "cmd", VaultPath: root, EventID: e.EventID, Error: err.Error()})
			log.Fatalf("failed to fold event %s: %v", e.EventID, err)
		}
		payloads = append(payloads, v)
	}
	r := reducer.New(nil)
	r.ApplyEvents(payloads)
	stateHash := ""
	if r.State.Metadata.StateHash != nil {
		stateHash = *r.State.Metadata.StateHash
	}

	runID, err := idx.RecordRun(stateHash, r.State.Metadata.EventCount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		fail("cmd", root, "run_record_failed", err)
	}

	logging.Info("vault_reindexed", logging.Fields{Component: "cmd", VaultPath: root})
	fmt.Printf("indexed %d events\n", len(events))
	fmt.Printf("run: %s\n", runID)
}

func exportEvidenceCommand() {
	if len(os.Args) < 4 {
		fmt.Println("usage: provara export-evidence <dir> <out.zip> [run-id]")
		os.Exit(1)
	}
	root := os.Args[2]
	zipPath := os.Args[3]
	runID := ""
	if len(os.Args) > 4 {
		runID = os.Args[4]
	}

	if err := vault.ExportEvidenceBag(root, zipPath, runID); err != nil {
		fail("cmd", root, "evidence_bag_export_failed", err)
	}
	logging.Info("evidence_bag_exported", logging.Fields{Component: "cmd", VaultPath: root})
	fmt.Printf("evidence bag created: %s\n", zipPath)
}

func eventToValue(e *event.Event) (canon.Value, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return canon.Null, err
	}
	return canon.Parse(data)
}
