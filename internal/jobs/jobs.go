// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package jobs runs scheduled maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTagPruneSchedule runs the orphan-tag cleanup daily at 03:00.
const DefaultTagPruneSchedule = "0 3 * * *"

// jobTimeout bounds a single run.
const jobTimeout = 5 * time.Minute

// TagPruner deletes tags no longer linked to any post.
type TagPruner interface {
	PruneOrphans(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron instance.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers fn under the standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() { run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	slog.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// AddTagPrune registers orphan-tag pruning.
func (s *Scheduler) AddTagPrune(spec string, tags TagPruner) error {
	if spec == "" {
		spec = DefaultTagPruneSchedule
	}
	return s.Add("tag-prune", spec, PruneTags(tags))
}

// PruneTags adapts a TagPruner to a job function.
func PruneTags(tags TagPruner) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := tags.PruneOrphans(ctx)
		if err != nil {
			return err
		}
		slog.Info("orphan tags pruned", "deleted", n)
		return nil
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}

func run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		slog.Error("job failed", "job", name, "error", err)
		return
	}
	slog.Info("job completed", "job", name, "duration", time.Since(start).String())
}
