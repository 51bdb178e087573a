// Package apiclient implements the HTTP client for the fabline daemon API.
// The CLI uses it when a daemon answers on the configured bind address.
package apiclient
