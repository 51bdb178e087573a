package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fabline/internal/api"
	"fabline/internal/config"
	"fabline/internal/logging"
	"fabline/internal/notifications"
	"fabline/internal/orders"
	"fabline/internal/workflow"
)

// Daemon owns the order store, the workflow engine, and the HTTP API, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *orders.Store
	engine  *workflow.Engine
	service *api.WorkflowService

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	OrderStats   map[string]int
	Health       orders.HealthSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *orders.Store, logger *slog.Logger, engine *workflow.Engine) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || engine == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow engine")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "fablined.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		service:  api.NewWorkflowService(store, engine),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fabline daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.server.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("fabline daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fabline daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service exposes the API service layer backing the daemon.
func (d *Daemon) Service() *api.WorkflowService {
	return d.service
}

// APIAddr returns the bound API address, or empty if the server is down.
func (d *Daemon) APIAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (orders.DatabaseHealth, error) {
	if d.store == nil {
		return orders.DatabaseHealth{}, errors.New("order store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.OrderStats = stats
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Health = health
	}
	return status
}
