// Package assetcache implements the offline cache for the application
// shell.
//
// This is a separate policy from budget sync and never touches budget
// data. Read requests (GET, HEAD) are intercepted: allow-listed shell
// assets are served cache-first with a background revalidate, and every
// other successful fetch is cached keyed by request so it can be served
// when the upstream later fails. Non-read requests always reach the
// network so mutation endpoints are never served stale.
//
// Cache entries live in a versioned generation directory. Activating a
// new manifest version pre-fetches the shell list into a fresh
// generation and deletes the previous one, so updates apply without
// manual cleanup.
package assetcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the installation-time allow-list of shell assets.
//
// Example shell.yaml:
//
//	version: 1
//	assets:
//	  - /
//	  - /manifest.json
//	  - /favicon.ico
type Manifest struct {
	Version int      `yaml:"version"`
	Assets  []string `yaml:"assets"`
}

// LoadManifest reads and validates a shell manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version <= 0 {
		return nil, fmt.Errorf("manifest version must be positive (got %d)", m.Version)
	}

	return &m, nil
}

// entryMeta is the sidecar metadata stored next to a cached body.
type entryMeta struct {
	ContentType string `json:"content_type"`
	Status      int    `json:"status"`
}

// generation manages one cache generation directory.
type generation struct {
	dir string
}

const generationPrefix = "shell-v"

// openGeneration creates (if needed) the directory for a manifest
// version under root.
func openGeneration(root string, version int) (*generation, error) {
	dir := filepath.Join(root, fmt.Sprintf("%s%d", generationPrefix, version))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache generation: %w", err)
	}
	return &generation{dir: dir}, nil
}

// dropOtherGenerations removes every shell-v* directory under root
// except the active one.
func dropOtherGenerations(root, keep string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), generationPrefix) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if path == keep {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove old generation %s: %w", e.Name(), err)
		}
	}
	return nil
}

// key maps a request path (with query) to a stable filename.
func key(requestURI string) string {
	sum := sha256.Sum256([]byte(requestURI))
	return hex.EncodeToString(sum[:16])
}

// put stores a cached response body and its metadata.
func (g *generation) put(requestURI string, meta entryMeta, body []byte) error {
	k := key(requestURI)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entry metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(g.dir, k+".body"), body, 0644); err != nil {
		return fmt.Errorf("failed to write cache body: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dir, k+".meta"), metaJSON, 0644); err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}
	return nil
}

// get loads a cached response. Returns (meta, body, true) on a hit.
func (g *generation) get(requestURI string) (entryMeta, []byte, bool) {
	k := key(requestURI)

	metaJSON, err := os.ReadFile(filepath.Join(g.dir, k+".meta"))
	if err != nil {
		return entryMeta{}, nil, false
	}
	body, err := os.ReadFile(filepath.Join(g.dir, k+".body"))
	if err != nil {
		return entryMeta{}, nil, false
	}

	var meta entryMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return entryMeta{}, nil, false
	}
	return meta, body, true
}
