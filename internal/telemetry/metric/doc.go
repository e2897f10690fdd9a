// Package metric provides Prometheus metrics for snapkeep.
//
// A Registry is constructed once by the host and passed to the autosave
// service and the recovery ledger. A nil *Registry is valid and records
// nothing, so library callers that do not care about metrics pay no cost.
//
// Metrics include:
//
//   - Snapshot outcomes and write latency
//   - Retained backup count and newest backup size
//   - Recovery record count, manifest parse errors and purges
//
// Handler exposes everything (plus Go runtime and process collectors) in the
// Prometheus text format.
package metric
