package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
)

// Watchdog periodically fails runs stuck in the running state, typically
// left behind by a crash. Runs one sweep at startup and then on the
// configured cron schedule.
type Watchdog struct {
	config *common.WatchdogConfig
	logger arbor.ILogger
	runs   interfaces.RunStorage
	cron   *cron.Cron
	maxAge time.Duration
}

// New creates the stale-run watchdog
func New(config *common.WatchdogConfig, runs interfaces.RunStorage, logger arbor.ILogger) *Watchdog {
	return &Watchdog{
		config: config,
		logger: logger,
		runs:   runs,
		maxAge: common.Duration(config.MaxRunAge, 15*time.Minute),
	}
}

// Start runs the startup sweep and schedules the recurring one
func (w *Watchdog) Start() error {
	if !w.config.Enabled {
		w.logger.Debug().Msg("Watchdog disabled")
		return nil
	}

	// Runs abandoned by a previous process are failed immediately on
	// startup, regardless of age.
	w.sweep(0)

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.config.Schedule, func() {
		w.sweep(w.maxAge)
	}); err != nil {
		return fmt.Errorf("invalid watchdog schedule '%s': %w", w.config.Schedule, err)
	}
	w.cron.Start()

	w.logger.Info().
		Str("schedule", w.config.Schedule).
		Dur("max_run_age", w.maxAge).
		Msg("Watchdog started")
	return nil
}

// Stop halts the recurring sweep
func (w *Watchdog) Stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

func (w *Watchdog) sweep(maxAge time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.runs.MarkStaleRunning(ctx, maxAge)
	if err != nil {
		w.logger.Error().Err(err).Msg("Stale run sweep failed")
		return
	}
	if count > 0 {
		w.logger.Warn().Int("count", count).Msg("Marked stale runs as failed")
	}
}
