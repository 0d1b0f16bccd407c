// Package daemon wires one tier's scheduler, executor, queue, state store
// and status server together and runs them until cancelled. One daemon
// process serves exactly one tier; the three tiers never coordinate.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"errands/internal/api"
	"errands/internal/domain"
	"errands/internal/executor"
	"errands/internal/queue"
	"errands/internal/registry"
	"errands/internal/scheduler"
	"errands/internal/state"
)

type Options struct {
	Tier    domain.Tier
	BaseDir string

	// StatusAddr is the status server listen address; empty disables it.
	StatusAddr string

	// Workers is the executor pool size; 0 selects the tier default.
	Workers int
}

type Daemon struct {
	opts  Options
	reg   *registry.Registry
	store state.Store
	queue *queue.FIFO
	sched *scheduler.Service
	exec  *executor.Executor
}

// New opens the state store and builds the tier's loops. All failures here
// are startup failures: the caller should exit non-zero.
func New(opts Options, reg *registry.Registry) (*Daemon, error) {
	if !opts.Tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrConfiguration, opts.Tier)
	}

	store, err := state.Open(opts.BaseDir)
	if err != nil {
		return nil, err
	}

	q := queue.NewFIFO()
	workers := opts.Workers
	if workers <= 0 {
		workers = executor.DefaultWorkers(opts.Tier)
	}

	return &Daemon{
		opts:  opts,
		reg:   reg,
		store: store,
		queue: q,
		sched: scheduler.New(opts.Tier, reg, store, q),
		exec:  executor.New(opts.Tier, reg, q, workers),
	}, nil
}

// RunNow enqueues the errand immediately, outside its cron schedule. The
// last-fired record is left untouched so the regular schedule is unaffected.
func (d *Daemon) RunNow(errandID string) (string, error) {
	def, ok := d.reg.Get(errandID)
	if !ok || def.Tier != d.opts.Tier {
		return "", fmt.Errorf("%w: %s (tier %s)", domain.ErrUnknownErrand, errandID, d.opts.Tier)
	}
	now := time.Now()
	entry := domain.QueueEntry{
		RunID:      "run_" + uuid.NewString(),
		ErrandID:   def.ID,
		DueMinute:  now.Truncate(time.Minute),
		EnqueuedAt: now,
	}
	d.queue.Push(entry)
	log.Info().Str("errand", def.ID).Str("run_id", entry.RunID).Msg("errand enqueued out of schedule")
	return entry.RunID, nil
}

// Run blocks until ctx is cancelled, then shuts down in order: status
// server, loops, state store. A status address that cannot be bound is a
// startup failure, reported before any loop starts.
func (d *Daemon) Run(ctx context.Context) error {
	log.Info().
		Str("tier", string(d.opts.Tier)).
		Str("base_dir", d.opts.BaseDir).
		Int("errands", len(d.reg.ForTier(d.opts.Tier))).
		Msg("daemon starting")

	var ln net.Listener
	if d.opts.StatusAddr != "" {
		var err error
		ln, err = net.Listen("tcp", d.opts.StatusAddr)
		if err != nil {
			_ = d.store.Close()
			return fmt.Errorf("%w: status listen %s: %v", domain.ErrConfiguration, d.opts.StatusAddr, err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.exec.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		d.sched.Run(ctx)
	}()

	var srv *http.Server
	if ln != nil {
		srv = &http.Server{
			Handler: api.NewServer(d.opts.Tier, d.reg, d.exec, d.queue, d.RunNow),
		}
		go func() {
			log.Info().Str("addr", d.opts.StatusAddr).Msg("status server starting")
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("status server")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Str("tier", string(d.opts.Tier)).Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return d.store.Close()
}
