package config

import (
	"log/slog"
	"os"
	"path/filepath"
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

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
transcript_db: /tmp/transcript.db
servers:
  files:
    command: mcp-files
    args: ["--root", "/srv"]
  remote:
    transport: websocket
    url: wss://example.com/mcp
    headers:
      Authorization: Bearer abc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TranscriptDB != "/tmp/transcript.db" {
		t.Errorf("TranscriptDB = %q", cfg.TranscriptDB)
	}

	files, err := cfg.Server("files")
	if err != nil {
		t.Fatalf("Server(files): %v", err)
	}
	if files.Command != "mcp-files" {
		t.Errorf("files.Command = %q, want mcp-files", files.Command)
	}
	if len(files.Args) != 2 || files.Args[1] != "/srv" {
		t.Errorf("files.Args = %v", files.Args)
	}

	remote, err := cfg.Server("remote")
	if err != nil {
		t.Fatalf("Server(remote): %v", err)
	}
	if remote.Transport != "websocket" {
		t.Errorf("remote.Transport = %q, want websocket", remote.Transport)
	}
	if remote.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("remote.Headers = %v", remote.Headers)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("MCP_TOKEN", "secret123")

	path := writeConfig(t, `
servers:
  remote:
    transport: websocket
    url: wss://example.com/mcp
    headers:
      Authorization: Bearer ${MCP_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	remote, err := cfg.Server("remote")
	if err != nil {
		t.Fatalf("Server(remote): %v", err)
	}
	if got := remote.Headers["Authorization"]; got != "Bearer secret123" {
		t.Errorf("Authorization = %q, want expanded token", got)
	}
}

func TestLoadRejectsInvalidServer(t *testing.T) {
	path := writeConfig(t, `
servers:
  broken:
    transport: stdio
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for stdio server without command")
	}
}

func TestServerUnknown(t *testing.T) {
	cfg := &Config{Servers: map[string]ServerConfig{}}
	if _, err := cfg.Server("nope"); err == nil {
		t.Fatal("expected error for unknown server")
	}
}

func TestServerConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"stdio ok", ServerConfig{Command: "mcp-files"}, false},
		{"stdio explicit", ServerConfig{Transport: "stdio", Command: "mcp-files"}, false},
		{"stdio missing command", ServerConfig{Transport: "stdio"}, true},
		{"websocket ok", ServerConfig{Transport: "websocket", URL: "ws://x"}, false},
		{"websocket missing url", ServerConfig{Transport: "websocket"}, true},
		{"unknown transport", ServerConfig{Transport: "carrier-pigeon"}, true},
	}

	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"trace", LevelTrace, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	out := ReplaceLogLevelNames(nil, a)
	if out.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q, want TRACE", out.Value.String())
	}
}
