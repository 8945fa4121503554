package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpcall.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), &stdout, &stderr, []string{"version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	if !strings.Contains(stdout.String(), "mcpcall") {
		t.Errorf("version output = %q, want it to mention mcpcall", stdout.String())
	}
}

func TestRunNoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, nil)
	if err == nil {
		t.Fatal("expected usage error")
	}
	if !strings.Contains(err.Error(), "usage:") {
		t.Errorf("error = %q, want usage text", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error = %v, want unknown command", err)
	}
}

func TestRunConfigFlagMissingValue(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, []string{"-config"})
	if err == nil || !strings.Contains(err.Error(), "-config requires") {
		t.Errorf("error = %v, want -config requires a path", err)
	}
}

func TestRunCallRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, `
servers:
  files:
    command: cat
`)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr,
		[]string{"-config", path, "call", "files", "read_file", "{not json"})
	if err == nil || !strings.Contains(err.Error(), "parse tool arguments") {
		t.Errorf("error = %v, want argument parse failure", err)
	}
}

func TestRunHistoryWithoutTranscript(t *testing.T) {
	path := writeConfig(t, `
servers:
  files:
    command: cat
`)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr,
		[]string{"-config", path, "history"})
	if err == nil || !strings.Contains(err.Error(), "transcript_db") {
		t.Errorf("error = %v, want missing transcript_db", err)
	}
}

func TestRunUnknownServer(t *testing.T) {
	path := writeConfig(t, `
servers:
  files:
    command: cat
`)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr,
		[]string{"-config", path, "tools", "absent"})
	if err == nil || !strings.Contains(err.Error(), "unknown server") {
		t.Errorf("error = %v, want unknown server", err)
	}
}

func TestRunBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level: shouting
servers:
  files:
    command: cat
`)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr,
		[]string{"-config", path, "tools", "files"})
	if err == nil || !strings.Contains(err.Error(), "unknown log level") {
		t.Errorf("error = %v, want unknown log level", err)
	}
}
