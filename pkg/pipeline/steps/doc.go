/*
Package steps provides the concrete pipeline stages: ingest, analyze,
encrypt, upload and sync.

Each step does its local work and delegates remote side effects to a narrow
collaborator interface (Prober, Catalog, Analyzer, Encryptor, Uploader,
Syncer) injected at construction. External-service errors are categorized by
message pattern so the manager's retry loop only retries what is actually
transient. The Builder composes the default ordering and hands back a ready
pipeline.Manager.
*/
package steps
