package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"errands/internal/api"
	"errands/internal/domain"
	"errands/internal/executor"
	"errands/internal/queue"
	"errands/internal/registry"
)

func newTestServer(t *testing.T) (http.Handler, *queue.FIFO) {
	t.Helper()
	reg := registry.New()
	err := reg.Register(domain.ErrandDefinition{
		ID: "cleanup", Name: "cleanup", CronExpr: "*/5 * * * *", Tier: domain.TierShort,
		Run: func(ctx context.Context) error { return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewFIFO()
	exec := executor.New(domain.TierShort, reg, q, 1)

	runNow := func(id string) (string, error) {
		if _, ok := reg.Get(id); !ok {
			return "", fmt.Errorf("%w: %s", domain.ErrUnknownErrand, id)
		}
		q.Push(domain.QueueEntry{RunID: "run_test", ErrandID: id})
		return "run_test", nil
	}
	return api.NewServer(domain.TierShort, reg, exec, q, runNow), q
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{"errands_up 1", "errands_queue_depth 0", "errands_executions_total 0"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %q:\n%s", metric, body)
		}
	}
}

func TestListErrands(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/errands", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var views []struct {
		ID   string `json:"id"`
		Cron string `json:"cron"`
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID != "cleanup" || views[0].Cron != "*/5 * * * *" {
		t.Errorf("views = %+v", views)
	}
}

func TestRunNowEndpoint(t *testing.T) {
	srv, q := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/errands/cleanup/run", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID == "" {
		t.Error("empty run id")
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1", q.Len())
	}
}

func TestRunNowUnknownErrand(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/errands/ghost/run", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
