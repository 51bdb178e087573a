// Package daemon wires the order store, workflow engine, and HTTP API into
// a single long-running process. A lock file enforces one instance per
// machine; the API server binds the configured address and maps the
// workflow error taxonomy onto HTTP statuses.
package daemon
