// Package scheduler owns the periodic timer that drives the Status Probe,
// plus one-shot mode (spec §4.5). It enforces "at most one pending probe
// handle per balancer" unconditionally (SPEC_FULL §9 open question),
// unlike the source, which only cleared the prior handle sometimes.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pass is the probe pass the Scheduler drives. It is satisfied by
// probe.Runner.RunPass.
type Pass func(ctx context.Context) error

// Scheduler arms exactly one pending *time.Timer at a time.
type Scheduler struct {
	logger   *zap.Logger
	interval time.Duration
	oneShot  bool
	pass     Pass

	mu      sync.Mutex
	timer   *time.Timer
	stopped atomic.Bool
}

// New builds a Scheduler. interval is LB_INTERVAL (spec §4.5); it is
// unused in one-shot mode.
func New(logger *zap.Logger, interval time.Duration, oneShot bool, pass Pass) *Scheduler {
	return &Scheduler{logger: logger, interval: interval, oneShot: oneShot, pass: pass}
}

// Start runs the first pass. In one-shot mode it runs synchronously once
// and returns without arming any timer. In periodic mode it runs the
// first pass synchronously (mirroring "after init finishes bootstrap,
// schedule checkStatuses after LB_INTERVAL" — the very first pass happens
// at init, subsequent ones after each interval) and then arms the
// recurring timer.
func (s *Scheduler) Start(ctx context.Context) error {
	err := s.runPass(ctx)
	if s.oneShot {
		return err
	}
	s.arm(ctx)
	return err
}

// Stop cancels the pending timer. In-flight probe requests are not
// individually cancelled; they complete or time out on their own, and
// their writes land in the registry without resurrecting scheduling,
// because arm checks stopped before re-arming (spec §4.5, §9).
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// runPass invokes pass and logs a non-nil error at Warn (pool exhaustion
// is surfaced to callers elsewhere; here it's just recorded).
func (s *Scheduler) runPass(ctx context.Context) error {
	err := s.pass(ctx)
	if err != nil && s.logger != nil {
		s.logger.Warn("probe pass completed with no active node", zap.Error(err))
	}
	return err
}

// arm schedules the next pass after interval, replacing any previously
// pending timer so at most one is ever outstanding. It is a no-op once
// Stop has been called.
func (s *Scheduler) arm(ctx context.Context) {
	if s.stopped.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, func() {
		if s.stopped.Load() {
			return
		}
		_ = s.runPass(ctx)
		s.arm(ctx)
	})
}
