package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"crate/internal/api"
	"crate/internal/config"
	"crate/internal/digging"
	"crate/internal/logging"
	"crate/internal/queue"
)

const shutdownTimeout = 10 * time.Second

// Daemon serves the queue API and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	service *digging.Service
	server  *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon around an open store.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	svc, err := digging.NewFromConfig(cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("build queue service: %w", err)
	}
	handler := api.NewHandler(svc, store, logger)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		service:  svc,
		server:   newAPIServer(cfg.Paths.APIBind, handler.Routes(), logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and begins serving.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another crate server instance is already running")
	}

	if err := d.server.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("crate server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
	)
	return nil
}

// Stop stops serving, waits for background lookups, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.server.stop(ctx)
	if err := d.service.Wait(ctx); err != nil {
		logging.WarnWithContext(d.logger, "background lookups still running at shutdown", "shutdown_lookups_pending",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "entries are retried on the next up-next call"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release server lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("crate server stopped")
}

// Run starts the daemon and blocks until ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		Address:      d.server.addr(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
