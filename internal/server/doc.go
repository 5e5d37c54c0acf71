// Package server provides the HTTP API for monitoring and controlling the
// transcription pipeline: health and status endpoints, device listing,
// pipeline start/stop, buffer tuning and Prometheus metrics.
package server
