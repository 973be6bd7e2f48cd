// Package config loads the wardkeep runtime configuration from YAML.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wardkeep/wardkeep/internal/alert"
	"github.com/wardkeep/wardkeep/internal/boundary"
)

// Domains classifies knowledge domains for the policy engine.
type Domains struct {
	Protected []string `yaml:"protected"`
	Work      []string `yaml:"work"`
	Immutable []string `yaml:"immutable"`
}

// Boundary converts the YAML domain lists to the engine's form.
func (d Domains) Boundary() boundary.Domains {
	return boundary.Domains{
		Protected: d.Protected,
		Work:      d.Work,
		Immutable: d.Immutable,
	}
}

// Guardian holds monitoring cadence and alerting knobs.
type Guardian struct {
	Interval       string `yaml:"interval"`
	AlertWindow    string `yaml:"alert_window"`
	AlertThreshold int    `yaml:"alert_threshold"`
}

// Durations parses the tick interval and the alert window.
func (g Guardian) Durations() (interval, window time.Duration, err error) {
	interval, err = time.ParseDuration(g.Interval)
	if err != nil {
		return 0, 0, fmt.Errorf("parse guardian interval: %w", err)
	}
	window, err = time.ParseDuration(g.AlertWindow)
	if err != nil {
		return 0, 0, fmt.Errorf("parse guardian alert window: %w", err)
	}
	return interval, window, nil
}

// Audit locates the append-only audit log.
type Audit struct {
	Path string `yaml:"path"`
}

// Vault locates the sealed-package store.
type Vault struct {
	Path  string `yaml:"path"`
	KeyID string `yaml:"key_id"`
}

// Log holds logging preferences.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config holds all configurable wardkeep parameters.
type Config struct {
	EntityID  string         `yaml:"entity_id"`
	Principal string         `yaml:"principal"`
	Domains   Domains        `yaml:"domains"`
	Guardian  Guardian       `yaml:"guardian"`
	Artifacts []string       `yaml:"artifacts"`
	Audit     Audit          `yaml:"audit"`
	Vault     Vault          `yaml:"vault"`
	Alerts    []alert.Config `yaml:"alerts"`
	Log       Log            `yaml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		EntityID:  "entity-1",
		Principal: "P1",
		Domains: Domains{
			Protected: []string{"personal-kb", "soul-kb"},
			Work:      []string{"work-kb"},
			Immutable: []string{"soul-kb"},
		},
		Guardian: Guardian{
			Interval:       "1s",
			AlertWindow:    "60s",
			AlertThreshold: 3,
		},
		Audit: Audit{Path: filepath.Join(defaultDir(), "audit.log")},
		Vault: Vault{Path: filepath.Join(defaultDir(), "vault.db"), KeyID: "wardkeep-seal"},
		Log:   Log{Level: "info"},
	}
}

// DefaultPath returns the config location used when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wardkeep"
	}
	return filepath.Join(home, ".wardkeep")
}

// Load reads configuration from a YAML file.
// Empty path falls back to ~/.wardkeep/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk and feeds the
// engine's configuration proof. When no file exists (defaults used),
// the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, hash, nil
}

// WriteDefault writes the commented default configuration, creating parent
// directories. Empty path falls back to ~/.wardkeep/config.yaml. Refuses to
// overwrite an existing file. Returns the path written.
func WriteDefault(path string) (string, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(DefaultYAML()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}

// DefaultYAML returns a commented YAML string for wardkeep init.
func DefaultYAML() string {
	return `# wardkeep configuration
# Generated by: wardkeep init
#
# Boundary rules (evaluation order, cannot be changed):
#   1. write into an immutable domain -> blocked, CRITICAL
#   2. any operation from a work domain into a protected domain -> blocked, HIGH
#   3. transfer between protected and work domains (either direction) -> blocked, HIGH
#   4. everything else -> allowed

# Identity the boundary protects.
entity_id: entity-1

# The single principal allowed to initialize the engine and swear the covenant.
principal: P1

# Domain classification. A domain may be both protected and immutable;
# immutable domains are implicitly protected.
domains:
  protected:
    - personal-kb
    - soul-kb
  work:
    - work-kb
  immutable:
    - soul-kb

# Guardian cadence and alerting.
#   interval: time between integrity checks
#   alert_window / alert_threshold: N violations within the window
#   raise a critical alert
guardian:
  interval: 1s
  alert_window: 60s
  alert_threshold: 3

# Filesystem artifacts watched for tampering (modification time).
# artifacts:
#   - /var/lib/wardkeep/soul-kb

# Append-only audit log. Defaults to ~/.wardkeep/audit.log.
# audit:
#   path: /var/lib/wardkeep/audit.log

# Sealed-package vault. Defaults to ~/.wardkeep/vault.db.
# vault:
#   path: /var/lib/wardkeep/vault.db
#   key_id: wardkeep-seal

# Webhook alert sinks. Formats: generic | slack | pagerduty.
# Events filter by notification name; "*" forwards everything.
# alerts:
#   - url: https://hooks.example.com/wardkeep
#     format: slack
#     events: ["guardian.critical", "covenant.violation"]

# Logging.
log:
  level: info
  pretty: false
`
}
