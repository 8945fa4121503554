package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stopTimeout is how long Close waits for the subprocess to exit after
// stdin is closed before killing it.
const stopTimeout = 5 * time.Second

// StdioConfig configures a stdio MCP transport that communicates with a
// subprocess over stdin/stdout using newline-delimited JSON frames.
type StdioConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments passed to the executable.
	Args []string

	// Env are additional environment variables for the subprocess
	// (format: "KEY=VALUE"). These are appended to the current
	// process environment.
	Env []string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// StdioTransport frames messages as newline-delimited JSON over a
// subprocess's stdin/stdout. The subprocess's stderr is not part of the
// protocol; it is drained to the log.
type StdioTransport struct {
	logger *slog.Logger

	writeMu sync.Mutex // serializes frame writes
	stdin   io.WriteCloser

	reader *bufio.Reader

	mu      sync.Mutex // guards cmd/closed for Close
	cmd     *exec.Cmd
	closed  bool
	waitErr chan error // receives cmd.Wait result (exactly once)
}

// StartStdio launches the subprocess and returns a transport connected
// to its stdin/stdout. The caller owns the subprocess lifetime through
// Close.
func StartStdio(cfg StdioConfig) (*StdioTransport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("starting MCP subprocess",
		"command", cfg.Command,
		"args", cfg.Args,
	)

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		stdout.Close()
		stdin.Close()
		return nil, fmt.Errorf("start subprocess %s: %w", cfg.Command, err)
	}

	t := &StdioTransport{
		logger:  logger,
		stdin:   stdin,
		reader:  bufio.NewReaderSize(stdout, 1<<20), // 1 MiB buffer for large responses
		cmd:     cmd,
		waitErr: make(chan error, 1),
	}

	go t.drainStderr(stderrPipe)
	go func() { t.waitErr <- cmd.Wait() }()

	logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return t, nil
}

// Send writes one frame plus the newline delimiter to the subprocess's
// stdin.
func (t *StdioTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.stdin.Write(append(frame, '\n')); err != nil {
		return fmt.Errorf("write to subprocess stdin: %w", err)
	}
	return nil
}

// Receive reads one newline-delimited frame from the subprocess's
// stdout. The read blocks until a full line is available; a concurrent
// Close terminates the subprocess, which fails the read and unblocks
// it. Only the connection's read loop calls Receive, so cancellation
// through ctx is checked only at entry.
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := t.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read from subprocess stdout: %w", err)
	}
	return line, nil
}

// Close terminates the subprocess: stdin is closed to signal exit, then
// the process is given stopTimeout before being killed. Idempotent.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.stdin != nil {
		t.stdin.Close()
	}

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP subprocess", "pid", t.cmd.Process.Pid)

	select {
	case err := <-t.waitErr:
		return err
	case <-time.After(stopTimeout):
		t.logger.Warn("MCP subprocess did not exit gracefully, killing",
			"pid", t.cmd.Process.Pid,
		)
		_ = t.cmd.Process.Kill()
		<-t.waitErr
		return nil
	}
}

// drainStderr reads stderr lines and logs them at debug level.
func (t *StdioTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}
