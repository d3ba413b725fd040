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

	"daystart/internal/config"
	"daystart/internal/logging"
	"daystart/internal/queue"
	"daystart/internal/server"
)

// Daemon coordinates background processing and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	api       *server.Server
	processor server.BatchProcessor
	refresher server.ContentRefresher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, api *server.Server, processor server.BatchProcessor, refresher server.ContentRefresher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || api == nil || processor == nil || refresher == nil {
		return nil, errors.New("daemon requires config, store, api server, processor, and refresher")
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		api:       api,
		processor: processor,
		refresher: refresher,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// poll and refresh loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another daystart daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.wg.Add(2)
	go d.pollLoop(runCtx)
	go d.refreshLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("daystart daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background loops, shuts down the API server, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daystart daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether the daemon loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// pollLoop processes due jobs on a fixed interval. The scheduler-invoked
// processing trigger remains the primary drive; this loop keeps briefings
// moving when the scheduler stalls.
func (d *Daemon) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Jobs.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := d.processor.ProcessBatch(ctx, 0)
			if err != nil {
				d.logger.Error("poll batch failed", logging.Error(err))
				continue
			}
			if summary.Claimed > 0 || summary.Reclaimed > 0 {
				d.logger.Info("poll batch processed",
					logging.Int("claimed", summary.Claimed),
					logging.Int("completed", summary.Completed),
					logging.Int("requeued", summary.Requeued),
					logging.Int("failed", summary.Failed),
					logging.Int("reclaimed", summary.Reclaimed))
			}
		}
	}
}

// refreshLoop keeps cached content warm so job processing rarely waits on
// upstream providers.
func (d *Daemon) refreshLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Cache.RefreshIntervalMinutes) * time.Minute
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for contentType, err := range d.refresher.RefreshAll(ctx) {
				if err != nil {
					d.logger.Warn("content refresh failed",
						logging.String(logging.FieldContentType, contentType),
						logging.Error(err))
				}
			}
		}
	}
}
