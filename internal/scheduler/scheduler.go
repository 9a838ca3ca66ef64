// Package scheduler produces checkpoint snapshots on a fixed interval.
//
// Every tick walks the configured root, samples the host and hands one
// independent snapshot to each publisher. Nothing is carried from one tick
// to the next.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idelchi/checkpoint/internal/config"
	"github.com/idelchi/checkpoint/internal/dirstat"
	"github.com/idelchi/checkpoint/internal/hostinfo"
	"github.com/idelchi/checkpoint/internal/report"
)

// HostSampler reads host metrics.
type HostSampler interface {
	Sample(ctx context.Context) (*hostinfo.Sample, error)
}

// Publisher receives every snapshot.
type Publisher interface {
	Publish(snap *report.Snapshot) error
}

// Scheduler runs ticks on a fixed interval.
type Scheduler struct {
	cfg        config.Config
	sampler    HostSampler
	publishers []Publisher
	logger     *slog.Logger

	// Overridable for testing.
	profile func(ctx context.Context, opt dirstat.Options, progressHook func(int64, int64)) (*dirstat.Stats, error)
	now     func() time.Time
	newID   func() uuid.UUID
}

// New validates cfg and returns a Scheduler. The configuration, slices included,
// is copied; later changes to cfg have no effect. If logger is nil, a no-op logger is used.
func New(cfg *config.Config, sampler HostSampler, logger *slog.Logger, publishers ...Publisher) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler: nil configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	if sampler == nil {
		return nil, errors.New("scheduler: nil host sampler")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	owned := *cfg
	owned.Extensions = slices.Clone(cfg.Extensions)
	owned.Excludes = slices.Clone(cfg.Excludes)

	return &Scheduler{
		cfg:        owned,
		sampler:    sampler,
		publishers: publishers,
		logger:     logger,
		profile:    dirstat.Profile,
		now:        time.Now,
		newID:      uuid.New,
	}, nil
}

// walkOptions maps the configuration onto a walk.
func (s *Scheduler) walkOptions() dirstat.Options {
	return dirstat.Options{
		Root:       s.cfg.Root,
		Extensions: s.cfg.Extensions,
		Limit:      s.cfg.Limit,
		Excludes:   s.cfg.Excludes,
		Depth:      s.cfg.Depth,
		Workers:    s.cfg.Workers,
		Logger:     s.logger,
	}
}

// walk profiles the root, bounded by the walk timeout when one is configured.
// A walk that runs out of time yields an error and no partial result.
func (s *Scheduler) walk(ctx context.Context) (*dirstat.Stats, error) {
	if timeout := s.cfg.WalkTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stats, err := s.profile(ctx, s.walkOptions(), nil)
	if err != nil {
		return nil, fmt.Errorf("scheduler: profiling %q: %w", s.cfg.Root, err)
	}

	return stats, nil
}

// Tick produces one snapshot and publishes it.
// The walk and the host sample run concurrently. A failed walk or sample fails the tick
// before anything is published; publisher errors are joined and returned after every
// publisher has been tried.
func (s *Scheduler) Tick(ctx context.Context) (*report.Snapshot, error) {
	start := s.now()

	var (
		wg      sync.WaitGroup
		host    *hostinfo.Sample
		hostErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		host, hostErr = s.sampler.Sample(ctx)
	}()

	stats, walkErr := s.walk(ctx)

	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	if hostErr != nil {
		return nil, fmt.Errorf("scheduler: sampling host: %w", hostErr)
	}

	snap := &report.Snapshot{
		ID:            s.newID(),
		Timestamp:     s.now(),
		GeneratorName: s.cfg.GeneratorName,
		Refresh:       s.cfg.Interval.Duration,
		Host:          host,
		Files:         stats,
		Warnings:      append([]string(nil), host.Warnings...),
	}

	if stats.Skipped > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("dirstat: %d unreadable entries skipped", stats.Skipped))
	}

	var errs []error

	for _, p := range s.publishers {
		if err := p.Publish(snap); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("snapshot taken",
		"id", snap.ID,
		"root", stats.Root,
		"tracked", stats.TotalTracked,
		"skipped", stats.Skipped,
		"warnings", len(snap.Warnings),
		"elapsed", s.now().Sub(start),
	)

	if err := errors.Join(errs...); err != nil {
		return snap, fmt.Errorf("scheduler: publishing: %w", err)
	}

	return snap, nil
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Ticks never overlap. Failed ticks are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"root", s.cfg.Root,
		"interval", s.cfg.Interval.Duration,
		"extensions", s.cfg.Extensions,
		"output", s.cfg.Output,
	)

	ticker := time.NewTicker(s.cfg.Interval.Duration)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}

		// Both may be ready; cancellation wins.
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")

			return nil
		}
	}
}
