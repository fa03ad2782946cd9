/*
Package pipeline implements the staged processing pipeline that every
archived file runs through.

A Context carries one work item and accumulates stage outputs; the Manager
drives the registered Steps in order, owning the retry loop (exponential
backoff for transient errors), lifecycle hooks, event emission and the
concurrency gate for batch processing. Step errors are values, not Go
errors: a StepError carries a category (transient, permanent, fatal,
unknown) that decides whether the step retries, fails, or halts the whole
pipeline. Panics escaping a step are recovered at the manager boundary and
converted to unknown-category failures.

The default step ordering is ingest → analyze → encrypt → upload → sync,
composed by the builder in pipeline/steps. Cancellation is cooperative:
Cancel trips a per-context flag that the manager checks between steps and
steps check at their own suspension points.
*/
package pipeline
