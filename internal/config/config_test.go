package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"errands/internal/config"
	"errands/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errands.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
base_dir: /var/lib/errands
status_addr:
  short: ":8081"
  long: ":8083"
workers:
  long: 2
errands:
  - name: tmp-clean
    cron: "*/5 * * * *"
    tier: short
    type: shell
    timeout: 30s
    params:
      command: find
      args: ["/tmp", "-mmin", "+60", "-delete"]
  - name: heartbeat
    cron: "0 * * * *"
    tier: LONG
    type: http
    params:
      url: https://example.com/ping
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.BaseDir != "/var/lib/errands" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if got := cfg.StatusAddrFor(domain.TierShort); got != ":8081" {
		t.Errorf("StatusAddrFor(SHORT) = %q, want :8081", got)
	}
	if got := cfg.StatusAddrFor(domain.TierMedium); got != "" {
		t.Errorf("StatusAddrFor(MEDIUM) = %q, want empty", got)
	}
	if got := cfg.WorkersFor(domain.TierLong); got != 2 {
		t.Errorf("WorkersFor(LONG) = %d, want 2", got)
	}
	if got := cfg.WorkersFor(domain.TierShort); got != 0 {
		t.Errorf("WorkersFor(SHORT) = %d, want 0 (default)", got)
	}

	if len(cfg.Errands) != 2 {
		t.Fatalf("len(Errands) = %d, want 2", len(cfg.Errands))
	}
	first := cfg.Errands[0]
	if first.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", first.Timeout)
	}
	if diff := cmp.Diff("tmp-clean", first.Name); diff != "" {
		t.Errorf("name mismatch:\n%s", diff)
	}
	if first.Params["command"] != "find" {
		t.Errorf("params = %+v", first.Params)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadRequiresBaseDir(t *testing.T) {
	path := writeConfig(t, "errands: []\n")
	_, err := config.Load(path)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := writeConfig(t, `
base_dir: /var/lib/errands
errands:
  - name: odd
    cron: "* * * * *"
    tier: urgent
    type: shell
`)
	_, err := config.Load(path)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadRejectsNamelessErrand(t *testing.T) {
	path := writeConfig(t, `
base_dir: /var/lib/errands
errands:
  - cron: "* * * * *"
    tier: short
    type: shell
`)
	_, err := config.Load(path)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}
