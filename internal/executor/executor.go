// Package executor drains a tier's queue and runs errand callables with
// failure isolation: an errand that errors or panics is recorded as a failed
// run and the loop moves on. There is no automatic retry; the errand's cron
// cadence is its retry mechanism.
package executor

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"errands/internal/domain"
	"errands/internal/queue"
	"errands/internal/registry"
)

type Executor struct {
	tier    domain.Tier
	reg     *registry.Registry
	queue   *queue.FIFO
	history *History
	now     func() time.Time

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]chan struct{} // errand id -> done signal of the running execution

	wg sync.WaitGroup

	executions atomic.Uint64
	failures   atomic.Uint64
}

func New(tier domain.Tier, reg *registry.Registry, q *queue.FIFO, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		tier:     tier,
		reg:      reg,
		queue:    q,
		history:  NewHistory(256),
		now:      time.Now,
		sem:      make(chan struct{}, workers),
		inflight: make(map[string]chan struct{}),
	}
}

// DefaultWorkers sizes the tier's pool from the machine: half the CPUs plus
// some headroom, split 50/30/20 across LONG/MEDIUM/SHORT.
func DefaultWorkers(tier domain.Tier) int {
	total := runtime.NumCPU()/2 + 4
	var share float64
	switch tier {
	case domain.TierLong:
		share = 0.5
	case domain.TierMedium:
		share = 0.3
	default:
		share = 0.2
	}
	n := int(math.Round(float64(total) * share))
	if n < 1 {
		n = 1
	}
	return n
}

// Run drains the queue in FIFO order until ctx is cancelled, then waits for
// in-flight executions to finish. Dispatch blocks while a run of the same
// errand id is in flight, so two firings of one errand never overlap.
func (e *Executor) Run(ctx context.Context) {
	log.Info().Str("tier", string(e.tier)).Int("workers", cap(e.sem)).Msg("executor started")

	for {
		entry, err := e.queue.Pop(ctx)
		if err != nil {
			e.wg.Wait()
			log.Info().Str("tier", string(e.tier)).Msg("executor stopped")
			return
		}

		def, ok := e.reg.Get(entry.ErrandID)
		if !ok {
			log.Warn().Str("errand", entry.ErrandID).Str("run_id", entry.RunID).Msg("queue entry for unregistered errand dropped")
			continue
		}

		if err := e.admit(ctx, entry.ErrandID); err != nil {
			e.wg.Wait()
			log.Info().Str("tier", string(e.tier)).Msg("executor stopped")
			return
		}
		e.wg.Add(1)
		go func(def domain.ErrandDefinition, entry domain.QueueEntry) {
			defer e.wg.Done()
			defer func() {
				<-e.sem
				e.clearInflight(entry.ErrandID)
			}()
			e.execute(ctx, def, entry)
		}(def, entry)
	}
}

// admit waits for any in-flight run of the same errand id, then takes a
// worker slot. Called only from the dispatch loop, which preserves FIFO
// dispatch order.
func (e *Executor) admit(ctx context.Context, errandID string) error {
	for {
		e.mu.Lock()
		done, busy := e.inflight[errandID]
		if !busy {
			e.inflight[errandID] = make(chan struct{})
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}

	select {
	case <-ctx.Done():
		e.clearInflight(errandID)
		return ctx.Err()
	case e.sem <- struct{}{}:
		return nil
	}
}

func (e *Executor) clearInflight(errandID string) {
	e.mu.Lock()
	if done, ok := e.inflight[errandID]; ok {
		close(done)
		delete(e.inflight, errandID)
	}
	e.mu.Unlock()
}

func (e *Executor) execute(ctx context.Context, def domain.ErrandDefinition, entry domain.QueueEntry) {
	started := e.now()
	err := e.invoke(ctx, def)
	finished := e.now()

	out := domain.ExecutionOutcome{
		RunID:      entry.RunID,
		ErrandID:   def.ID,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     domain.StatusSuccess,
	}
	if err != nil {
		out.Status = domain.StatusFailure
		out.Error = err.Error()
	}
	e.history.Add(out)
	e.executions.Add(1)

	if err != nil {
		e.failures.Add(1)
		log.Warn().Err(err).
			Str("errand", def.ID).
			Str("run_id", entry.RunID).
			Dur("took", finished.Sub(started)).
			Msg("errand failed")
		return
	}
	log.Info().
		Str("errand", def.ID).
		Str("run_id", entry.RunID).
		Dur("took", finished.Sub(started)).
		Msg("errand finished")
}

// invoke runs the callable. Panics are converted to errors here so nothing a
// callable does can take down the loop.
func (e *Executor) invoke(ctx context.Context, def domain.ErrandDefinition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in errand %s: %v\n%s", def.ID, r, debug.Stack())
		}
	}()

	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}
	return def.Run(ctx)
}

// History returns the bounded record of recent outcomes.
func (e *Executor) History() *History { return e.history }

// Stats returns total and failed execution counts since startup.
func (e *Executor) Stats() (executions, failures uint64) {
	return e.executions.Load(), e.failures.Load()
}
