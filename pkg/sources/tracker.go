package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haven-hvn/haven/pkg/log"
)

// fileState is the on-disk shape of one plugin's known-source set
type fileState struct {
	PluginName string    `json:"plugin_name"`
	Sources    []string  `json:"sources"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker persists the set of source IDs each plugin has already archived.
// One JSON artifact per plugin lives under the data directory; sets are
// cached in memory after first access.
type Tracker struct {
	dataDir string
	logger  zerolog.Logger
	mu      sync.Mutex
	cache   map[string]map[string]struct{}
}

// NewTracker creates a tracker rooted at dataDir, creating it if needed
func NewTracker(dataDir string) (*Tracker, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Tracker{
		dataDir: dataDir,
		logger:  log.WithComponent("sources"),
		cache:   make(map[string]map[string]struct{}),
	}, nil
}

// Load returns the full known set for a plugin (possibly empty)
func (t *Tracker) Load(pluginName string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.load(pluginName)
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Contains reports whether the source ID is known for the plugin
func (t *Tracker) Contains(pluginName, sourceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.load(pluginName)[sourceID]
	return ok
}

// Add marks one source as known and persists the set
func (t *Tracker) Add(pluginName, sourceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.load(pluginName)
	set[sourceID] = struct{}{}
	return t.save(pluginName, set)
}

// AddMany marks multiple sources as known with a single write
func (t *Tracker) AddMany(pluginName string, sourceIDs []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.load(pluginName)
	for _, id := range sourceIDs {
		set[id] = struct{}{}
	}
	return t.save(pluginName, set)
}

// FilterNew returns the subset of sourceIDs not yet known, preserving order
func (t *Tracker) FilterNew(pluginName string, sourceIDs []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.load(pluginName)
	var fresh []string
	for _, id := range sourceIDs {
		if _, ok := set[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

// Clear forgets all known sources for a plugin and removes its artifact
func (t *Tracker) Clear(pluginName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.cache, pluginName)
	path := t.filePath(pluginName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove source cache: %w", err)
	}
	return nil
}

// Stats returns the known-source count for a plugin
func (t *Tracker) Stats(pluginName string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]int{
		"known_count": len(t.load(pluginName)),
	}
}

// load returns the cached set for a plugin, reading from disk on first
// access. Caller holds t.mu.
func (t *Tracker) load(pluginName string) map[string]struct{} {
	if set, ok := t.cache[pluginName]; ok {
		return set
	}

	set := make(map[string]struct{})
	data, err := os.ReadFile(t.filePath(pluginName))
	if err == nil {
		var state fileState
		if err := json.Unmarshal(data, &state); err != nil {
			t.logger.Warn().Err(err).Str("plugin", pluginName).Msg("Failed to parse source cache")
		} else {
			for _, id := range state.Sources {
				set[id] = struct{}{}
			}
		}
	} else if !os.IsNotExist(err) {
		t.logger.Warn().Err(err).Str("plugin", pluginName).Msg("Failed to read source cache")
	}

	t.cache[pluginName] = set
	return set
}

// save writes the set atomically (temp file + rename). Caller holds t.mu.
func (t *Tracker) save(pluginName string, set map[string]struct{}) error {
	state := fileState{
		PluginName: pluginName,
		Sources:    make([]string, 0, len(set)),
		UpdatedAt:  time.Now().UTC(),
	}
	for id := range set {
		state.Sources = append(state.Sources, id)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal source cache: %w", err)
	}

	path := t.filePath(pluginName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write source cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace source cache: %w", err)
	}
	return nil
}

func (t *Tracker) filePath(pluginName string) string {
	return filepath.Join(t.dataDir, pluginName+"_sources.json")
}
