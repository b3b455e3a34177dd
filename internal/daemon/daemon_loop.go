package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// watchLoop is the main daemon loop.
func (d *Daemon) watchLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			if !d.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one sweep. It returns false when the loop cannot continue.
func (d *Daemon) poll(ctx context.Context) bool {
	n, err := d.purger.PurgeExpired(ctx)
	if err != nil {
		if isSchemaError(err) {
			d.logger.Error("database schema mismatch, stopping sweeps. Run 'parley init' to fix", zap.Error(err))
			return false
		}
		d.logger.Warn("purge failed", zap.Error(err))
		return true
	}
	if n > 0 {
		d.logger.Debug("purged expired messages", zap.Int64("count", n))
	}
	return true
}
