// Package sealvault persists sealed configuration packages in an embedded
// SQLite database. The vault is the durable record of each activation: the
// ceremony hands it the boundary material and gets back an opaque package
// identifier.
package sealvault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no package matches the requested identifier.
var ErrNotFound = errors.New("sealvault: package not found")

// SealRequest is the material handed to the sealing collaborator.
type SealRequest struct {
	EntityID      string
	KeyID         string
	IntegrityHash string
	Payload       any // marshalled to JSON as the package body
}

// Package is one stored sealed configuration package.
type Package struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entity_id"`
	KeyID         string          `json:"key_id"`
	IntegrityHash string          `json:"integrity_hash"`
	Payload       json.RawMessage `json:"payload"`
	SealedAt      time.Time       `json:"sealed_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sealed_packages (
	id             TEXT PRIMARY KEY,
	entity_id      TEXT NOT NULL,
	key_id         TEXT NOT NULL,
	integrity_hash TEXT NOT NULL,
	payload        TEXT NOT NULL,
	sealed_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sealed_packages_entity ON sealed_packages(entity_id);
`

// Vault is a SQLite-backed package store.
type Vault struct {
	db *sql.DB
}

// Open opens (or creates) the vault database at path.
func Open(path string) (*Vault, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("sealvault: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sealvault: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sealvault: create schema: %w", err)
	}
	return &Vault{db: db}, nil
}

// Seal stores a sealed package and returns its identifier.
func (v *Vault) Seal(ctx context.Context, req SealRequest) (string, error) {
	if req.EntityID == "" {
		return "", errors.New("sealvault: entity id is required")
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return "", fmt.Errorf("sealvault: marshal payload: %w", err)
	}

	id := "pkg-" + uuid.NewString()
	sealedAt := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = v.db.ExecContext(ctx,
		`INSERT INTO sealed_packages (id, entity_id, key_id, integrity_hash, payload, sealed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, req.EntityID, req.KeyID, req.IntegrityHash, string(payload), sealedAt)
	if err != nil {
		return "", fmt.Errorf("sealvault: store package: %w", err)
	}
	return id, nil
}

// Get loads one package by identifier.
func (v *Vault) Get(ctx context.Context, id string) (*Package, error) {
	row := v.db.QueryRowContext(ctx,
		`SELECT id, entity_id, key_id, integrity_hash, payload, sealed_at
		 FROM sealed_packages WHERE id = ?`, id)

	p, err := scanPackage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sealvault: load package %s: %w", id, err)
	}
	return p, nil
}

// List returns all stored packages, newest first.
func (v *Vault) List(ctx context.Context) ([]Package, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT id, entity_id, key_id, integrity_hash, payload, sealed_at
		 FROM sealed_packages ORDER BY rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sealvault: list packages: %w", err)
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		p, err := scanPackage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sealvault: scan package: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (v *Vault) Close() error {
	return v.db.Close()
}

func scanPackage(scan func(dest ...any) error) (*Package, error) {
	var p Package
	var payload, sealedAt string
	if err := scan(&p.ID, &p.EntityID, &p.KeyID, &p.IntegrityHash, &payload, &sealedAt); err != nil {
		return nil, err
	}
	p.Payload = json.RawMessage(payload)
	t, err := time.Parse(time.RFC3339Nano, sealedAt)
	if err != nil {
		return nil, fmt.Errorf("parse sealed_at: %w", err)
	}
	p.SealedAt = t
	return &p, nil
}
