// ABOUTME: Periodic reaper that destroys idle sessions on a cron schedule
// ABOUTME: Wraps robfig/cron around the manager's CleanupIdleSessions

package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner destroys idle sessions and reports how many were removed.
// Satisfied by session.Manager.
type Cleaner interface {
	CleanupIdleSessions(ctx context.Context) int
}

// Reaper runs the idle sweep on a fixed interval.
type Reaper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// New creates a reaper that sweeps every interval.
func New(cleaner Cleaner, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With("component", "reaper"),
	}
}

// Start schedules the sweep and begins running it.
func (r *Reaper) Start() error {
	c := cron.New()
	spec := "@every " + r.interval.String()
	if _, err := c.AddFunc(spec, r.sweep); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("reaper started", "interval", r.interval.String())
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info("reaper stopped")
}

func (r *Reaper) sweep() {
	removed := r.cleaner.CleanupIdleSessions(context.Background())
	if removed > 0 {
		r.logger.Info("idle sweep finished", "removed", removed)
	}
}
