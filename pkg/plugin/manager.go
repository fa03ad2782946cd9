package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haven-hvn/haven/pkg/log"
)

// Manager owns the live plugin instances. It resolves plugins by name for
// the job executor, instantiating from the registry and initializing them
// lazily on first use.
type Manager struct {
	registry *Registry
	logger   zerolog.Logger

	mu          sync.Mutex
	plugins     map[string]Plugin
	initialized map[string]bool
	disabled    map[string]bool
	configs     map[string]map[string]string
}

// NewManager creates a manager backed by the given registry
func NewManager(registry *Registry) *Manager {
	return &Manager{
		registry:    registry,
		logger:      log.WithComponent("plugins"),
		plugins:     make(map[string]Plugin),
		initialized: make(map[string]bool),
		disabled:    make(map[string]bool),
		configs:     make(map[string]map[string]string),
	}
}

// Configure stores per-plugin settings, applying them to a live instance
// if one exists
func (m *Manager) Configure(name string, config map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[name] = config
	if p, ok := m.plugins[name]; ok {
		p.Configure(config)
	}
}

// Get resolves a plugin by name, creating and initializing it if needed.
// Returns an error for unknown, disabled, or init-failed plugins.
func (m *Manager) Get(ctx context.Context, name string) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disabled[name] {
		return nil, fmt.Errorf("plugin disabled: %s", name)
	}

	p, ok := m.plugins[name]
	if !ok {
		created, err := m.registry.Create(name, m.configs[name])
		if err != nil {
			return nil, err
		}
		m.plugins[name] = created
		p = created
	}

	if !m.initialized[name] {
		if err := p.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize plugin %s: %w", name, err)
		}
		m.initialized[name] = true
		m.logger.Debug().Str("plugin", name).Msg("Plugin initialized")
	}

	return p, nil
}

// RegisterInstance adds an already-constructed plugin, bypassing the
// registry. Used by tests and embedded plugins.
func (m *Manager) RegisterInstance(p Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Info().Name
	m.plugins[name] = p
}

// Enable clears the disabled flag for a plugin
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disabled, name)
}

// Disable prevents a plugin from being resolved until re-enabled
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[name] = true
}

// Names returns all resolvable plugin names: registered factories plus
// directly registered instances
func (m *Manager) Names() []string {
	names := m.registry.Names()

	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.plugins {
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			names = append(names, name)
		}
	}
	return names
}

// HealthCheckAll probes every live plugin
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	m.mu.Lock()
	live := make(map[string]Plugin, len(m.plugins))
	for name, p := range m.plugins {
		live[name] = p
	}
	m.mu.Unlock()

	results := make(map[string]bool, len(live))
	for name, p := range live {
		results[name] = p.HealthCheck(ctx)
	}
	return results
}

// ShutdownAll tears down every initialized plugin, best-effort
func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, p := range m.plugins {
		if !m.initialized[name] {
			continue
		}
		if err := p.Shutdown(ctx); err != nil {
			m.logger.Warn().Err(err).Str("plugin", name).Msg("Plugin shutdown failed")
		}
		m.initialized[name] = false
	}
}
