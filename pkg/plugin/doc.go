/*
Package plugin defines the contract between Haven and its media-source
plugins.

A plugin declares its capabilities up front (discover, archive, stream,
search, metadata, health-check) as a bitmask. The scheduler's executor does
not check that set: it calls HealthCheck, Discover and Archive on every
plugin a job names. The Registry maps names to factories; the
Manager owns live instances, initializing each plugin once on first use and
shutting all of them down on exit.

Concrete plugin implementations (e.g. a video-site downloader) live outside
the core; tests use in-memory fakes.
*/
package plugin
