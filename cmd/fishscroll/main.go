package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hpungsan/fishscroll/internal/analysis"
	"github.com/hpungsan/fishscroll/internal/capture"
	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/db"
	"github.com/hpungsan/fishscroll/internal/history"
	"github.com/hpungsan/fishscroll/internal/mcp"
	"github.com/hpungsan/fishscroll/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"identify": true, "normalize": true, "history": true,
	"serve": true, "ui": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _____ _     _                         _ _
  |  ___(_)___| |__  ___  ___ _ __ ___ | | |
  | |_  | / __| '_ \/ __|/ __| '__/ _ \| | |
  |  _| | \__ \ | | \__ \ (__| | | (_) | | |
  |_|   |_|___/_| |_|___/\___|_|  \___/|_|_|

  Sashimi identification and history

  Usage: fishscroll <command> [options]
         fishscroll --help

  MCP server mode requires piped input.`)
}

// baseDir returns $FISHSCROLL_HOME or ~/.fishscroll.
func baseDir() (string, error) {
	if dir := os.Getenv("FISHSCROLL_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".fishscroll"), nil
}

// newPipeline wires capture, the analysis client and the SQLite-backed
// history store from cfg.
func newPipeline(ctx context.Context, database *sql.DB, cfg *config.Config) (ops.Pipeline, error) {
	db.ConfigurePool(database, cfg)

	store, err := history.Open(ctx, history.NewSQLBackend(database, cfg.HistoryMaxBytes), history.Options{
		Limit: cfg.HistoryLimit,
	})
	if err != nil {
		return ops.Pipeline{}, fmt.Errorf("open history: %w", err)
	}

	opts := capture.Options{
		MaxDimension: cfg.MaxDimension,
		Quality:      cfg.Quality,
	}
	if cfg.CameraFrontURL != "" || cfg.CameraRearURL != "" {
		opts.Camera = capture.NewHTTPCamera(cfg.CameraFrontURL, cfg.CameraRearURL)
	}

	return ops.Pipeline{
		Capture: capture.New(opts),
		Analyzer: analysis.NewClient(analysis.Config{
			BaseURL:        cfg.BackendURL,
			TimeoutSeconds: cfg.RequestTimeoutSeconds,
		}),
		History: store,
	}, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(ops.Pipeline{}, nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	dir, err := baseDir()
	if err != nil {
		fatal("%v", err)
	}

	cfg, err := config.LoadWithEnv(dir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	database, err := db.Init(dir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()

	p, err := newPipeline(context.Background(), database, cfg)
	if err != nil {
		database.Close()
		fatal("%v", err)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(p, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'fishscroll --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := runMCP(p, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}

// runMCP serves the MCP tools over stdio. Unknown disabled_tools entries are
// logged, not fatal.
func runMCP(p ops.Pipeline, cfg *config.Config) error {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Printf("warning: unknown tool names in disabled_tools: %v (valid: %v)", unknown, mcp.AllToolNames())
	}
	return mcp.Run(mcp.Deps{
		History:  p.History,
		Analyzer: p.Analyzer,
		Capture:  p.Capture,
	}, cfg, Version)
}
