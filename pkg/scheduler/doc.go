/*
Package scheduler contains the recurring-job scheduler and the job executor.

The Scheduler keeps the job map in memory, persists every mutation to the
store, and drives fires through a robfig/cron engine running in UTC. Cron
expressions may have 5 fields (minute-first) or 6 (seconds-first); weekday 0
is Sunday. At most one run per job is in flight: ticks landing during a run
are coalesced, and fires delayed past the misfire grace are dropped rather
than run late. A versioned JSON state file backs up job definitions for
recovery when the store is lost.

The Executor performs one run: resolve the plugin, health-check it, discover
sources, filter them by the job's on-success policy against the known-source
set, archive new items under a bounded gate, and enqueue each archived file
into the processing pipeline without awaiting completion.
*/
package scheduler
