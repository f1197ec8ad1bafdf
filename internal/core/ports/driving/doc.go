// Package driving provides interfaces for application entry points
// (primary/inbound ports) consumed by the HTTP API, the CLI and the
// directory watcher.
package driving
