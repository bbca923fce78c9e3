package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"

	"github.com/goatkit/deskpilot/internal/kvstore"
)

// DefaultPurgeInterval is how often long-running commands sweep expired entries.
const DefaultPurgeInterval = 15 * time.Minute

// Purger is a store that keeps expired rows until swept. *kvstore.SQLiteStore
// implements it; memory and redis expire on their own.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

var _ Purger = (*kvstore.SQLiteStore)(nil)

// PurgeTask sweeps expired cache, token and draft entries from the store.
type PurgeTask struct {
	store  Purger
	logger hclog.Logger
}

// Name returns the task name.
func (t *PurgeTask) Name() string { return "kv-purge" }

// Run removes expired entries once.
func (t *PurgeTask) Run(ctx context.Context) (int64, error) {
	n, err := t.store.Purge(ctx)
	if err != nil {
		t.logger.Warn("purge failed", "error", err)
		return 0, err
	}
	if n > 0 {
		t.logger.Debug("purged expired entries", "count", n)
	}
	return n, nil
}

// PurgeTask returns the sweep for the configured store, or nil when the store
// expires entries itself.
func (a *App) PurgeTask() *PurgeTask {
	p, ok := a.Store.(Purger)
	if !ok {
		return nil
	}
	return &PurgeTask{store: p, logger: a.Logger.Named("housekeeping")}
}

// StartHousekeeping runs the purge now and then every interval until ctx is
// done. The returned func stops the schedule early.
func (a *App) StartHousekeeping(ctx context.Context, interval time.Duration) (func(), error) {
	task := a.PurgeTask()
	if task == nil {
		return func() {}, nil
	}
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := c.AddFunc(spec, func() { _, _ = task.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("app: schedule %s: %w", task.Name(), err)
	}
	_, _ = task.Run(ctx)
	c.Start()

	var once sync.Once
	done := make(chan struct{})
	stop := func() {
		once.Do(func() {
			close(done)
			<-c.Stop().Done()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop, nil
}
