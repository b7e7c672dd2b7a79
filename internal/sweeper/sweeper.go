// Package sweeper runs scheduled maintenance: pruning the durable event log
// past its resume window and archiving long-idle threads. Clients whose
// cursor falls behind the pruned window resync with a full message fetch.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"msgsync/pkg/config"
	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
)

const defaultCron = "*/5 * * * *"

// Start launches the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.SweeperConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Log.Info("sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweeper cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	logger.Log.Info("sweeper_started", zap.String("cron", cronExpr),
		zap.Duration("event_ttl", cfg.EventTTL.Duration()),
		zap.Duration("idle_archive_after", cfg.IdleArchiveAfter.Duration()))
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it.
func runScheduler(ctx context.Context, cfg config.SweeperConfig, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Log.Error("sweeper_nexttick_failed", zap.String("cron", cronExpr), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return
		}

		if err := RunOnce(cfg); err != nil {
			logger.Log.Error("sweeper_run_failed", zap.Error(err))
		}
	}
}

// RunOnce performs a single sweep over all threads.
func RunOnce(cfg config.SweeperConfig) error {
	start := time.Now()
	var pruned, archived int

	eventTTL := cfg.EventTTL.Duration()
	idleAfter := cfg.IdleArchiveAfter.Duration()
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 512
	}
	now := time.Now().UTC().UnixNano()

	err := store.ScanThreads(func(th models.Thread) (bool, error) {
		if eventTTL > 0 {
			cutoff := now - eventTTL.Nanoseconds()
			for {
				n, perr := store.PruneEvents(th.ID, cutoff, batch)
				if perr != nil {
					return false, perr
				}
				pruned += n
				if n < batch {
					break
				}
			}
		}
		if idleAfter > 0 && !th.Archived && th.LastActivityTS < now-idleAfter.Nanoseconds() {
			if aerr := archiveThread(th, now); aerr != nil {
				return false, aerr
			}
			archived++
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("sweep_complete",
		zap.Int("events_pruned", pruned), zap.Int("threads_archived", archived),
		zap.Duration("took", time.Since(start)))
	return nil
}

func archiveThread(th models.Thread, now int64) error {
	unlock := store.LockThread(th.ID)
	defer unlock()

	// reload under the lock; activity may have arrived since the scan
	cur, err := store.GetThreadRecord(th.ID)
	if err != nil {
		return err
	}
	if cur.Archived || cur.LastActivityTS > th.LastActivityTS {
		return nil
	}
	cur.Archived = true
	cur.ArchivedTS = now
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, cur); err != nil {
		return err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return err
	}
	logger.Log.Info("thread_archived", zap.String("thread", cur.ID))
	return nil
}
