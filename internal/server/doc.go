// Package server exposes the gatekeeper's library boundary over HTTP
// for front ends that deliver messages out of process. It is
// deliberately thin: one query endpoint, read-side stats, health, and
// metrics. No authentication or rendering happens here.
package server
