// Package api defines the transport DTO types for the fabline HTTP API and
// a service layer that maps engine and store operations onto them. Both the
// daemon's HTTP handlers and the CLI's direct-store mode consume this
// package so payload shapes stay identical across transports.
package api
