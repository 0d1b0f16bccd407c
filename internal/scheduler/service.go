// Package scheduler scans the registry once per minute and enqueues errands
// whose cron expression matches the current minute.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"errands/internal/croneval"
	"errands/internal/domain"
	"errands/internal/queue"
	"errands/internal/registry"
	"errands/internal/state"
)

type Service struct {
	tier  domain.Tier
	reg   *registry.Registry
	store state.Store
	queue *queue.FIFO
	now   func() time.Time
}

func New(tier domain.Tier, reg *registry.Registry, store state.Store, q *queue.FIFO) *Service {
	return &Service{tier: tier, reg: reg, store: store, queue: q, now: time.Now}
}

// Run scans immediately for the current minute, then wakes at every minute
// boundary until ctx is cancelled. Wake-ups are clock-aligned rather than a
// fixed-interval sleep, so the loop does not drift.
func (s *Service) Run(ctx context.Context) {
	log.Info().Str("tier", string(s.tier)).Int("errands", len(s.reg.ForTier(s.tier))).Msg("scheduler started")

	s.ScanOnce(ctx, s.now())
	for {
		if err := s.sleepUntilNextMinute(ctx); err != nil {
			log.Info().Str("tier", string(s.tier)).Msg("scheduler stopped")
			return
		}
		s.ScanOnce(ctx, s.now())
	}
}

func (s *Service) sleepUntilNextMinute(ctx context.Context) error {
	now := s.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	timer := time.NewTimer(next.Sub(now))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ScanOnce evaluates every errand of the tier against the minute containing
// now. An errand already recorded as fired for that minute is skipped, which
// also makes a repeated scan of the same minute (supervisor restart) a no-op.
// Minutes that passed while the process was down are skipped permanently:
// never double-fire wins over never miss.
func (s *Service) ScanOnce(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)

	for _, def := range s.reg.ForTier(s.tier) {
		last, ok, err := s.store.LastFired(ctx, def.ID)
		if err != nil {
			// One storage hiccup must not take the tier down. Skip this
			// errand for this minute and keep scanning.
			log.Error().Err(err).Str("errand", def.ID).Msg("schedule state read failed, skipping this minute")
			continue
		}
		if ok && !last.Before(minute) {
			continue // already fired for this minute
		}

		due, err := croneval.Matches(def.CronExpr, minute)
		if err != nil {
			// Expressions are validated at registration; treat this as a
			// per-errand fault rather than a loop fault.
			log.Error().Err(err).Str("errand", def.ID).Msg("cron evaluation failed")
			continue
		}
		if !due {
			continue
		}

		entry := domain.QueueEntry{
			RunID:      "run_" + uuid.NewString(),
			ErrandID:   def.ID,
			DueMinute:  minute,
			EnqueuedAt: s.now(),
		}
		s.queue.Push(entry)

		// Persist after the enqueue so a firing is never silently lost. A
		// crash between the two can re-enqueue this minute once on restart.
		if err := s.store.SetLastFired(ctx, def.ID, minute); err != nil {
			log.Error().Err(err).Str("errand", def.ID).Msg("schedule state write failed")
			continue
		}

		log.Info().
			Str("errand", def.ID).
			Str("run_id", entry.RunID).
			Time("due_minute", minute).
			Msg("errand enqueued")
	}
}
