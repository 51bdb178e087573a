package testsupport

import (
	"path/filepath"
	"testing"

	"fabline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRestrictedRole overrides the role allowed on gated steps.
func WithRestrictedRole(role string) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.RestrictedRole = role
	}
}

// WithAPIToken sets the daemon API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.APIToken = token
	}
}
