package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/logger"
	"github.com/shelfmate/shelfmate-server/internal/service"
)

// QuotaSweepJob periodically deletes quota counters past their retention.
type QuotaSweepJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *QuotaSweepJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideQuotaSweepJob provides the periodic quota counter sweep.
func ProvideQuotaSweepJob(i do.Injector) (*QuotaSweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	quota := do.MustInvoke[*service.QuotaService](i)
	log := do.MustInvoke[*logger.Logger](i)

	interval := cfg.Quota.SweepInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(cfg.Quota.RetentionDays) * 24 * time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sweep := func() {
		count, err := quota.Sweep(ctx, time.Now().Add(-retention))
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Quota sweep failed", "error", err)
			}
			return
		}
		if count > 0 {
			log.Info("Quota sweep completed", "deleted", count)
		}
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Initial sweep on startup
		sweep()

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Quota sweep job started", "interval", interval, "retention_days", cfg.Quota.RetentionDays)

	return &QuotaSweepJob{cancel: cancel, done: done}, nil
}
