// Package types defines the shared domain types for Haven: job definitions,
// execution records, discovered media sources and archive outcomes. All
// components exchange these value types rather than reaching into each
// other's state.
package types
