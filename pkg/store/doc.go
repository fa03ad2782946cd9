/*
Package store persists job definitions and execution history.

The Store interface is backed by BoltDB: one bucket for job definitions
keyed by the job's UUID string, and one append-only bucket for execution
records keyed by a monotonically increasing sequence number. Execution
records carry the plugin name denormalized, so deleting a job never touches
its history and orphaned records remain queryable.
*/
package store
