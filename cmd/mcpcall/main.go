// Mcpcall is a command-line client for MCP (Model Context Protocol)
// servers.
//
// It connects to servers defined in a YAML config file (see
// [config.DefaultSearchPaths]), discovers their tools, and invokes
// them. Tool invocations can be recorded to a SQLite transcript for
// later inspection.
//
// Usage:
//
//	mcpcall tools <server>                 List the server's tools
//	mcpcall call <server> <tool> [json]    Invoke a tool with JSON arguments
//	mcpcall history [limit]                Show recent tool invocations
//	mcpcall version                        Print version and build information
//
// Global flags: -config <path>, -log <level>.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jthum/mcp-client-go/internal/buildinfo"
	"github.com/jthum/mcp-client-go/internal/config"
	"github.com/jthum/mcp-client-go/internal/transcript"
	"github.com/jthum/mcp-client-go/mcp"
)

const usage = `usage: mcpcall [-config path] [-log level] <command>

commands:
  tools <server>                 list the server's tools
  call <server> <tool> [json]    invoke a tool with JSON arguments
  history [limit]                show recent tool invocations
  version                        print version and build information`

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the mcpcall command. All OS-level
// dependencies are injected as parameters; args is os.Args[1:]. We
// parse flags manually rather than using the flag package to avoid
// global state that interferes with parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath, logLevel string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			i++
			if i >= len(args) {
				return errors.New("-config requires a path")
			}
			configPath = args[i]
		case "-log", "--log":
			i++
			if i >= len(args) {
				return errors.New("-log requires a level")
			}
			logLevel = args[i]
		default:
			rest = append(rest, args[i])
		}
	}

	if len(rest) == 0 {
		return errors.New(usage)
	}

	cmd := rest[0]
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "tools", "call", "history":
		// Handled below, after config and logging are set up.
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	switch cmd {
	case "tools":
		if len(rest) < 2 {
			return errors.New("usage: mcpcall tools <server>")
		}
		return runTools(ctx, stdout, cfg, rest[1], logger)
	case "call":
		if len(rest) < 3 {
			return errors.New("usage: mcpcall call <server> <tool> [json]")
		}
		rawArgs := "{}"
		if len(rest) > 3 {
			rawArgs = rest[3]
		}
		return runCall(ctx, stdout, cfg, rest[1], rest[2], rawArgs, logger)
	case "history":
		limit := 20
		if len(rest) > 1 {
			limit, err = strconv.Atoi(rest[1])
			if err != nil || limit < 1 {
				return fmt.Errorf("invalid history limit %q", rest[1])
			}
		}
		return runHistory(ctx, stdout, cfg, limit)
	}
	return nil
}

// connect builds the configured transport for a server and returns an
// initialized client.
func connect(ctx context.Context, cfg *config.Config, name string, logger *slog.Logger) (*mcp.Client, error) {
	srv, err := cfg.Server(name)
	if err != nil {
		return nil, err
	}

	var transport mcp.Transport
	switch srv.Transport {
	case "", "stdio":
		transport, err = mcp.StartStdio(mcp.StdioConfig{
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
			Logger:  logger,
		})
	case "websocket":
		transport, err = mcp.DialWS(ctx, mcp.WSConfig{
			URL:     srv.URL,
			Headers: srv.Headers,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", srv.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	client := mcp.NewClient(name, transport, logger)
	if err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runTools(ctx context.Context, stdout io.Writer, cfg *config.Config, server string, logger *slog.Logger) error {
	client, err := connect(ctx, cfg, server, logger)
	if err != nil {
		return err
	}

	tools, listErr := client.ListTools(ctx)
	shutdownErr := client.Shutdown(ctx)
	if listErr != nil {
		return listErr
	}
	if shutdownErr != nil {
		logger.Warn("shutdown failed", "error", shutdownErr)
	}

	if name, version, ok := client.ServerInfo(); ok && name != "" {
		fmt.Fprintf(stdout, "# %s %s\n", name, version)
	}
	for _, tool := range tools {
		if tool.Description != "" {
			fmt.Fprintf(stdout, "%s\t%s\n", tool.Name, tool.Description)
		} else {
			fmt.Fprintln(stdout, tool.Name)
		}
	}
	return nil
}

func runCall(ctx context.Context, stdout io.Writer, cfg *config.Config, server, tool, rawArgs string, logger *slog.Logger) error {
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fmt.Errorf("parse tool arguments: %w", err)
	}

	client, err := connect(ctx, cfg, server, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, callErr := client.CallTool(ctx, tool, args)
	elapsed := time.Since(start)

	if cfg.TranscriptDB != "" {
		if err := record(ctx, cfg.TranscriptDB, server, tool, rawArgs, result, elapsed); err != nil {
			logger.Warn("transcript record failed", "error", err)
		}
	}

	if err := client.Shutdown(ctx); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}

	if callErr != nil {
		return callErr
	}

	fmt.Fprintln(stdout, result.Text())
	if result.IsError {
		return fmt.Errorf("tool %s reported an error", tool)
	}
	return nil
}

// record appends one invocation to the transcript store.
func record(ctx context.Context, dbPath, server, tool, rawArgs string, result *mcp.CallToolResult, elapsed time.Duration) error {
	store, err := transcript.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := transcript.Record{
		Server:    server,
		Tool:      tool,
		Arguments: rawArgs,
		Duration:  elapsed,
	}
	if result != nil {
		rec.Result = result.Text()
		rec.IsError = result.IsError
	} else {
		rec.IsError = true
	}
	return store.Record(ctx, rec)
}

func runHistory(ctx context.Context, stdout io.Writer, cfg *config.Config, limit int) error {
	if cfg.TranscriptDB == "" {
		return errors.New("no transcript_db configured")
	}

	store, err := transcript.NewStore(cfg.TranscriptDB)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	for _, rec := range records {
		status := "ok"
		if rec.IsError {
			status = "error"
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s/%s\t%s\t%s\n",
			rec.Timestamp.Local().Format(time.RFC3339),
			status,
			rec.Server,
			rec.Tool,
			rec.Duration,
			rec.Result,
		)
	}
	return nil
}
