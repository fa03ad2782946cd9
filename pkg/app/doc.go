// Package app wires Haven's components into a single Application value:
// event bus, job store, source tracker, plugin manager, pipeline and
// scheduler are constructed once and passed to their collaborators
// explicitly. The daemon command and the admin CLI both build on it.
package app
