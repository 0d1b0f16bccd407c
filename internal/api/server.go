// Package api serves a tier daemon's status surface: health, plain-text
// metrics, the tier's registered errands, recent outcomes, and a run-now
// trigger. It is observability glue; scheduling does not depend on it.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"errands/internal/domain"
	"errands/internal/executor"
	"errands/internal/queue"
	"errands/internal/registry"
)

// RunNowFunc enqueues an errand outside its cron schedule and returns the
// run id. The daemon supplies the implementation.
type RunNowFunc func(errandID string) (string, error)

type Server struct {
	tier   domain.Tier
	reg    *registry.Registry
	exec   *executor.Executor
	queue  *queue.FIFO
	runNow RunNowFunc
}

func NewServer(tier domain.Tier, reg *registry.Registry, exec *executor.Executor, q *queue.FIFO, runNow RunNowFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	s := &Server{tier: tier, reg: reg, exec: exec, queue: q, runNow: runNow}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)
	r.Get("/errands", s.listErrands)
	r.Get("/outcomes", s.listOutcomes)
	r.Post("/errands/{id}/run", s.runErrand)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	executions, failures := s.exec.Stats()
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "errands_up 1\n")
	fmt.Fprintf(w, "errands_queue_depth %d\n", s.queue.Len())
	fmt.Fprintf(w, "errands_executions_total %d\n", executions)
	fmt.Fprintf(w, "errands_failures_total %d\n", failures)
}

type errandView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CronExpr string `json:"cron"`
	Tier     string `json:"tier"`
	Timeout  string `json:"timeout,omitempty"`
}

func (s *Server) listErrands(w http.ResponseWriter, r *http.Request) {
	defs := s.reg.ForTier(s.tier)
	views := make([]errandView, 0, len(defs))
	for _, def := range defs {
		v := errandView{ID: def.ID, Name: def.Name, CronExpr: def.CronExpr, Tier: string(def.Tier)}
		if def.Timeout > 0 {
			v.Timeout = def.Timeout.String()
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) listOutcomes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exec.History().Recent())
}

type runResp struct {
	RunID      string    `json:"run_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (s *Server) runErrand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	runID, err := s.runNow(id)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownErrand) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, runResp{RunID: runID, EnqueuedAt: time.Now()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
