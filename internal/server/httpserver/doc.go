// Package httpserver serves the local observability endpoints of a running
// snapkeep watch:
//
//	GET /metrics  Prometheus exposition
//	GET /healthz  liveness
//	GET /status   autosave and recovery state as JSON
//
// It is meant for loopback use and has no authentication.
package httpserver
