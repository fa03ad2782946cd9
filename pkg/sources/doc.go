// Package sources tracks which source IDs each plugin has already archived.
// The per-plugin sets back the archive_new job policy: discovery results are
// filtered against the set, and a source is added only after a successful
// archive, so an item is archived at most once across restarts.
package sources
