// Memorytest is an AI assistant for a small web studio. It answers
// questions about the business, keeps long-term notes, and writes and
// edits HTML documents on request.
//
// It exposes a JSON HTTP API for chat, document retrieval, and usage
// reporting, plus a CLI for one-shot questions. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]); a .env file in the working directory
// supplies environment variables such as OPENAI_API_KEY.
//
// Usage:
//
//	memorytest serve             Start the API server
//	memorytest init [dir]        Initialize a working directory with defaults
//	memorytest ask <question>    Ask a single question (for testing)
//	memorytest version           Print version and build information
//	memorytest -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/speaks999/memorytest/internal/agent"
	"github.com/speaks999/memorytest/internal/api"
	"github.com/speaks999/memorytest/internal/buildinfo"
	"github.com/speaks999/memorytest/internal/config"
	"github.com/speaks999/memorytest/internal/documents"
	"github.com/speaks999/memorytest/internal/htmledit"
	"github.com/speaks999/memorytest/internal/llm"
	"github.com/speaks999/memorytest/internal/memory"
	"github.com/speaks999/memorytest/internal/tools"
	"github.com/speaks999/memorytest/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the memorytest command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the server.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:] — the command-line arguments after the program
//     name. We parse these manually rather than using the flag package
//     to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	// Default to human-readable text output.
	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: memorytest ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// memorytest is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Memorytest - Small-Business Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: memorytest [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/memorytest/config.yaml, /etc/memorytest/config.yaml")
	return nil
}

// runAsk handles the "memorytest ask <question>" subcommand. It boots a
// minimal agent over the configured stores (no HTTP server, no usage
// history) and processes a single question, printing the response and
// its cost to stdout. Useful for quick smoke tests and debugging.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")

	question := strings.Join(args, " ")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.Store.DataDir, err)
	}

	mem, err := memory.NewStore(cfg.Store.MemoryPath())
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	docs, err := documents.NewStore(cfg.Store.DocumentsPath())
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}

	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second, logger)

	// One-shots skip the usage history; the cost summary is printed
	// instead.
	editor := htmledit.NewEditor(client, cfg.Editor.Model, cfg.Editor.MaxOutputTokens, logger, nil)
	registry := tools.NewRegistry(cfg.Profile, mem, docs, editor, logger)
	loop := agent.NewLoop(logger, client, registry, cfg.Agent, cfg.Pricing)

	resp, err := loop.Run(ctx, &agent.Request{
		Messages: []agent.Message{{Role: "user", Content: question}},
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, resp.Message)
	fmt.Fprintf(stdout, "\n(%d prompt + %d completion tokens, $%.6f)\n",
		resp.Cost.TotalPromptTokens, resp.Cost.TotalCompletionTokens, resp.Cost.TotalCost)
	if resp.DocumentID != "" {
		fmt.Fprintf(stdout, "Document: %s/api/document/%s\n", cfg.PublicBaseURL, resp.DocumentID)
	}
	return nil
}

// runServe handles the "memorytest serve" subcommand. It is the primary
// operating mode: loads config, opens the stores, builds the agent loop
// with its tool registry, starts the API server, and blocks until a
// shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The HTTP server drains in-flight requests
//  3. The usage database is closed via defer
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting memorytest", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure logger now that we know the desired level and format.
	// The initial Info-level text logger is used only for the startup
	// banner; everything after this point uses the configured settings.
	{
		// ParseLogLevel is already validated by config.Validate(), so
		// this error path should be unreachable in practice.
		level, _ := config.ParseLogLevel(cfg.LogLevel)
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"listen", cfg.Listen,
		"model", cfg.Agent.Model,
	)

	// --- Data directory ---
	// All persistent state (memory, documents, usage history) lives
	// under this directory.
	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.Store.DataDir, err)
	}

	// --- Memory store ---
	// JSON-file key/value store for the assistant's long-term notes.
	// Persists across restarts.
	mem, err := memory.NewStore(cfg.Store.MemoryPath())
	if err != nil {
		return fmt.Errorf("open memory store %s: %w", cfg.Store.MemoryPath(), err)
	}
	logger.Info("memory store opened", "path", cfg.Store.MemoryPath())

	// --- Document store ---
	docs, err := documents.NewStore(cfg.Store.DocumentsPath())
	if err != nil {
		return fmt.Errorf("open document store %s: %w", cfg.Store.DocumentsPath(), err)
	}
	logger.Info("document store opened", "path", cfg.Store.DocumentsPath(), "documents", len(docs.All()))

	// --- Usage history ---
	// Append-only SQLite record of every model call, queryable at
	// GET /api/usage/summary.
	usageStore, err := usage.NewStore(cfg.Store.UsageDBPath())
	if err != nil {
		return fmt.Errorf("open usage database %s: %w", cfg.Store.UsageDBPath(), err)
	}
	defer usageStore.Close()
	logger.Info("usage database opened", "path", cfg.Store.UsageDBPath())

	// --- Model client ---
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("no OpenAI API key configured - chat requests will fail")
	}
	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second, logger)

	// --- HTML editor ---
	// Editor and generator calls happen inside tool handlers, outside
	// the loop's per-request ledger. Record them straight into the
	// usage history so they are not invisible.
	onUsage := func(source, model string, promptTokens, completionTokens int) {
		err := usageStore.Record(context.Background(), usage.Record{
			Model:            model,
			Source:           source,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			CostUSD:          usage.ComputeCost(cfg.Pricing, model, promptTokens, completionTokens),
		})
		if err != nil {
			logger.Warn("recording editor usage failed", "source", source, "error", err)
		}
	}
	editor := htmledit.NewEditor(client, cfg.Editor.Model, cfg.Editor.MaxOutputTokens, logger, onUsage)

	// --- Tool registry ---
	registry := tools.NewRegistry(cfg.Profile, mem, docs, editor, logger)
	logger.Info("tools registered", "count", len(registry.List()))

	// --- Agent loop ---
	// The core conversation engine. Receives messages, seeds the
	// business profile, invokes tools, and accounts for cost.
	loop := agent.NewLoop(logger, client, registry, cfg.Agent, cfg.Pricing)

	// --- API server ---
	server := api.NewServer(cfg, loop, docs, cfg.Profile, logger)
	server.SetUsageStore(usageStore)

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	// Start the API server. This blocks until the server is shut down
	// (via context cancellation or fatal error).
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("memorytest stopped")
	return nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text. All log output goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file, reading a
// .env file from the working directory first so that ${VAR} references
// in the config resolve. If explicit is non-empty, that exact path is
// used (and must exist). Otherwise, [config.FindConfig] searches the
// default locations. Returns the parsed config, the path that was
// loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	// A missing .env is the normal case, not an error. Variables
	// already set in the environment win over .env values.
	_ = godotenv.Load()

	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
