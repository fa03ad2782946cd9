package plugin

import (
	"context"

	"github.com/haven-hvn/haven/pkg/types"
)

// Capability is a bit flag describing what a plugin can do
type Capability uint8

const (
	CapabilityDiscover Capability = 1 << iota
	CapabilityArchive
	CapabilityStream
	CapabilitySearch
	CapabilityMetadata
	CapabilityHealthCheck
)

// CapabilitySet is a bitmask of Capability flags
type CapabilitySet uint8

// Has reports whether the set contains the capability
func (s CapabilitySet) Has(c Capability) bool {
	return uint8(s)&uint8(c) != 0
}

// Capabilities builds a set from individual flags
func Capabilities(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

// Info describes a plugin to the rest of the system
type Info struct {
	Name         string
	DisplayName  string
	Version      string
	Description  string
	MediaTypes   []string
	Capabilities CapabilitySet
	ConfigSchema map[string]string
}

// Plugin is the contract every media-source plugin implements.
//
// Discover is required iff CapabilityDiscover is declared, Archive iff
// CapabilityArchive; a plugin lacking the capability may return an error
// from the call. The core never inspects plugin configuration beyond the
// declared capabilities.
type Plugin interface {
	// Info returns static plugin metadata
	Info() Info

	// Initialize performs idempotent setup. A plugin that fails to
	// initialize is unavailable; discovery is not attempted.
	Initialize(ctx context.Context) error

	// Shutdown is best-effort teardown
	Shutdown(ctx context.Context) error

	// Configure merges the given settings into the current configuration
	Configure(config map[string]string)

	// HealthCheck is a cheap liveness probe; it must not panic
	HealthCheck(ctx context.Context) bool

	// Discover returns the current candidate sources, deduplicated within
	// a single call. The result is finite and may be empty.
	Discover(ctx context.Context) ([]types.MediaSource, error)

	// Archive downloads one source. On success the result's OutputPath is
	// a readable regular file of the stated size.
	Archive(ctx context.Context, source types.MediaSource) (types.ArchiveResult, error)
}
