package httpcheck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"errands/internal/handlers/httpcheck"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := httpcheck.New(nil); err == nil {
		t.Error("expected error for missing url")
	}
}

func TestRunSuccess(t *testing.T) {
	var gotMethod, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Source")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	run, err := httpcheck.New(map[string]any{
		"url":     srv.URL,
		"method":  "POST",
		"headers": map[string]string{"X-Source": "errands"},
		"body":    "ping",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background()); err != nil {
		t.Fatalf("run = %v, want nil", err)
	}
	if gotMethod != http.MethodPost || gotHeader != "errands" {
		t.Errorf("request = %s with X-Source=%q", gotMethod, gotHeader)
	}
}

func TestRunFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	run, err := httpcheck.New(map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	err = run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("run = %v, want 500 error", err)
	}
}
