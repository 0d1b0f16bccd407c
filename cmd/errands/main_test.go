package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errands.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckPrintsRegistryWithNextRun(t *testing.T) {
	path := writeConfig(t, `
base_dir: `+t.TempDir()+`
errands:
  - name: tmp-clean
    cron: "*/5 * * * *"
    tier: short
    type: shell
    params:
      command: "true"
`)

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"check", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "tmp-clean") || !strings.Contains(out, "*/5 * * * *") {
		t.Errorf("check output missing errand listing:\n%s", out)
	}
	if !strings.Contains(out, "next ") {
		t.Errorf("check output missing next run time:\n%s", out)
	}
	if !strings.Contains(out, "MEDIUM errands:") || !strings.Contains(out, "(none)") {
		t.Errorf("check output missing empty-tier sections:\n%s", out)
	}
}

func TestCheckRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, `
base_dir: `+t.TempDir()+`
errands:
  - name: broken
    cron: "61 * * * *"
    tier: short
    type: shell
    params:
      command: "true"
`)

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"check", "--config", path})
	if err := root.Execute(); err == nil {
		t.Error("Execute = nil, want error for invalid cron expression")
	}
}
