package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alienxp03/agora/internal/generation"
)

const (
	providerHealthCacheFilename = "agora-provider-health.json"
	providerHealthCacheTTL      = 30 * time.Minute
	providerHealthFailureTTL    = time.Minute
	providerHealthCacheVersion  = 1
)

type healthKey struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

type healthEntry struct {
	healthKey
	Status generation.HealthStatus `json:"status"`
}

// healthFile is the on-disk form. Files with another version are ignored.
type healthFile struct {
	Version int           `json:"version"`
	Entries []healthEntry `json:"entries"`
}

// providerHealthCache remembers probe results per provider and model, and
// mirrors them to a JSON file so a restarted server does not re-probe.
// Successes live for ttl, failures for at most providerHealthFailureTTL.
type providerHealthCache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[healthKey]generation.HealthStatus
	now     func() time.Time
}

func newProviderHealthCache(path string, ttl time.Duration) *providerHealthCache {
	if ttl <= 0 {
		ttl = providerHealthCacheTTL
	}
	c := &providerHealthCache{
		path:    path,
		ttl:     ttl,
		entries: make(map[healthKey]generation.HealthStatus),
		now:     time.Now,
	}
	c.readFile()
	return c
}

func defaultProviderHealthCachePath() string {
	return filepath.Join(os.TempDir(), providerHealthCacheFilename)
}

func (c *providerHealthCache) fresh(status generation.HealthStatus) bool {
	if status.CheckedAt.IsZero() {
		return false
	}
	ttl := c.ttl
	if !status.Available {
		ttl = min(ttl, providerHealthFailureTTL)
	}
	return c.now().Sub(status.CheckedAt) <= ttl
}

// Lookup returns the unexpired result of probing provider with model.
func (c *providerHealthCache) Lookup(provider, model string) (generation.HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, ok := c.entries[healthKey{provider, model}]
	if !ok || !c.fresh(status) {
		return generation.HealthStatus{}, false
	}
	return status, true
}

// Latest returns the most recent unexpired result for provider across all
// probed models.
func (c *providerHealthCache) Latest(provider string) (generation.HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var latest generation.HealthStatus
	found := false
	for key, status := range c.entries {
		if key.Provider != provider || !c.fresh(status) {
			continue
		}
		if !found || status.CheckedAt.After(latest.CheckedAt) {
			latest, found = status, true
		}
	}
	return latest, found
}

// Store records a probe result, drops expired entries and rewrites the file.
func (c *providerHealthCache) Store(provider, model string, status generation.HealthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[healthKey{provider, model}] = status
	for key, s := range c.entries {
		if !c.fresh(s) {
			delete(c.entries, key)
		}
	}
	c.writeFile()
}

func (c *providerHealthCache) readFile() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read provider health cache", "path", c.path, "error", err)
		}
		return
	}

	var file healthFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("Failed to parse provider health cache", "path", c.path, "error", err)
		return
	}
	if file.Version != providerHealthCacheVersion {
		slog.Debug("Ignoring provider health cache", "path", c.path, "version", file.Version)
		return
	}
	for _, e := range file.Entries {
		c.entries[e.healthKey] = e.Status
	}
}

// writeFile replaces the cache file through a rename so readers never see
// a partial write.
func (c *providerHealthCache) writeFile() {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create provider health cache directory", "path", c.path, "error", err)
		return
	}

	file := healthFile{Version: providerHealthCacheVersion, Entries: make([]healthEntry, 0, len(c.entries))}
	for key, status := range c.entries {
		file.Entries = append(file.Entries, healthEntry{healthKey: key, Status: status})
	}
	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode provider health cache", "path", c.path, "error", err)
		return
	}

	tmp, err := os.CreateTemp(dir, ".agora-health-*")
	if err != nil {
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", err)
		return
	}
	_, werr := tmp.Write(payload)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", errors.Join(werr, cerr))
		return
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to replace provider health cache", "path", c.path, "error", err)
	}
}
