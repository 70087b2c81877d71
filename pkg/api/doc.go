// Package api provides the host's control-plane surface: an HTTP
// server for /healthz, /readyz, and /metrics, and a gRPC server
// exposing the standard health-checking service, so an orchestrator
// can supervise a running host without reaching into its bus traffic.
package api
