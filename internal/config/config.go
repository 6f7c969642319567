// Package config loads the vault-level provara.yaml configuration,
// mirroring the YAML policy-file convention used elsewhere in this stack.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// ConflictPolicy controls when an observation moves a claim into the
// contested namespace instead of the local one.
type ConflictPolicy struct {
	// ConfidenceThreshold is the confidence at or above which a conflicting
	// observation contests a claim: against a canonical claim the incoming
	// confidence must reach it, against a local claim the higher of the
	// existing and incoming confidences must reach it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// VaultConfig represents the provara.yaml structure stored at a vault's root.
type VaultConfig struct {
	Version  string `yaml:"version"`
	Defaults struct {
		LogLevel string `yaml:"log_level"`
	} `yaml:"defaults"`
	Conflict ConflictPolicy `yaml:"conflict"`
	Trust    []TrustedKey   `yaml:"trusted_keys,omitempty"`
}

// TrustedKey names an actor key-ID the vault operator has pre-approved,
// independent of any attestation recorded in the event log itself.
type TrustedKey struct {
	KeyID string `yaml:"key_id"`
	Label string `yaml:"label,omitempty"`
}

// DefaultConflictConfidenceThreshold is used when a vault carries no
// provara.yaml, or the file omits conflict.confidence_threshold.
const DefaultConflictConfidenceThreshold = 0.5

// Default returns a VaultConfig with the protocol's baked-in defaults.
func Default() *VaultConfig {
	cfg := &VaultConfig{Version: "1"}
	cfg.Defaults.LogLevel = "info"
	cfg.Conflict.ConfidenceThreshold = DefaultConflictConfidenceThreshold
	return cfg
}

// Load reads and parses a provara.yaml file at path. A missing file is not
// an error: callers get the protocol defaults back.
func Load(path string) (*VaultConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "parsing config %s", path)
	}
	if cfg.Conflict.ConfidenceThreshold <= 0 {
		cfg.Conflict.ConfidenceThreshold = DefaultConflictConfidenceThreshold
	}
	return cfg, nil
}
