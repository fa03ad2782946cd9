/*
Package log provides structured logging for Haven using zerolog.

The log package wraps the zerolog library to provide structured logging
(JSON when Config.JSONOutput is set, console output otherwise) with
component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

Components obtain a child logger once at construction time:

	logger := log.WithComponent("scheduler")
	logger.Info().Str("job_id", id).Msg("Job added")

Per-entity helpers (WithPlugin, WithJobID, WithCorrelationID) attach the
corresponding field so related log lines can be grepped together across
components.
*/
package log
