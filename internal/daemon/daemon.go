package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Purger removes messages whose expiry has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Daemon sweeps expired view-once and ephemeral messages on an interval.
// One daemon per database file holds the lock; other server processes
// sharing the file skip sweeping.
type Daemon struct {
	purger       Purger
	logger       *zap.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
	cancelFunc   context.CancelFunc
	wg           sync.WaitGroup
	lockPath     string
	locked       bool
	pollInterval time.Duration
}

// LockInfo represents the daemon lock file contents.
type LockInfo struct {
	PID       int   `json:"pid"`
	StartedAt int64 `json:"started_at"`
}

// Config holds daemon configuration options.
type Config struct {
	PollInterval time.Duration
	LockPath     string
	Logger       *zap.Logger
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Minute,
	}
}

// LockPathFor returns the lock file used for the database at dbPath.
func LockPathFor(dbPath string) string {
	return dbPath + ".purge.lock"
}

// New creates a daemon that sweeps through purger.
func New(purger Purger, cfg Config) *Daemon {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{
		purger:       purger,
		logger:       logger.Named("daemon"),
		stopCh:       make(chan struct{}),
		lockPath:     cfg.LockPath,
		pollInterval: cfg.PollInterval,
	}
}

// Start begins the sweep loop. It fails if another live process holds the lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.lockPath != "" {
		if err := d.acquireLock(); err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		d.locked = true
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.wg.Add(1)
	go d.watchLoop(loopCtx)
	return nil
}

// Stop shuts the loop down and releases the lock.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.wg.Wait()

	if !d.locked {
		return nil
	}
	d.locked = false
	return d.releaseLock()
}

// acquireLock creates the lock file, detecting stale locks.
func (d *Daemon) acquireLock() error {
	if data, err := os.ReadFile(d.lockPath); err == nil {
		var info LockInfo
		if json.Unmarshal(data, &info) == nil && info.PID != os.Getpid() {
			if syscall.Kill(info.PID, 0) == nil {
				return fmt.Errorf("daemon already running (pid %d)", info.PID)
			}
			d.logger.Info("removing stale lock", zap.Int("pid", info.PID))
		}
	}

	info := LockInfo{
		PID:       os.Getpid(),
		StartedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(d.lockPath, data, 0600)
}

func (d *Daemon) releaseLock() error {
	err := os.Remove(d.lockPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsLocked reports whether a live daemon holds the lock at lockPath.
func IsLocked(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}

	var info LockInfo
	if json.Unmarshal(data, &info) != nil {
		return false
	}

	// Signal 0 probes for the process without delivering anything.
	return syscall.Kill(info.PID, 0) == nil
}

// isSchemaError checks if an error is a SQLite schema mismatch.
func isSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "has no column")
}
