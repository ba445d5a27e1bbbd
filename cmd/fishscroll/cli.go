package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/fishscroll/internal/archive"
	"github.com/hpungsan/fishscroll/internal/backend"
	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/imaging"
	"github.com/hpungsan/fishscroll/internal/ops"
	"github.com/hpungsan/fishscroll/internal/web"
)

// MaxStdinBytes caps images piped to identify and normalize.
const MaxStdinBytes = 32 << 20

// DefaultUIAddr is where `fishscroll ui` listens unless --addr is given.
const DefaultUIAddr = "127.0.0.1:8788"

// newCLIApp creates the CLI application with all commands.
func newCLIApp(p ops.Pipeline, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "fishscroll",
		Usage:   "Identify sashimi from a photo and keep a history of results",
		Version: Version,
		Commands: []*cli.Command{
			identifyCmd(p),
			normalizeCmd(cfg),
			historyCmd(p, cfg),
			serveCmd(cfg),
			uiCmd(p, cfg),
			mcpCmd(p, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// identifyCmd creates the identify command.
func identifyCmd(p ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "identify",
		Usage:     "Identify the fish in an image file, piped image or camera snapshot",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "camera", Aliases: []string{"c"}, Usage: "Take a snapshot from the configured camera"},
			&cli.StringFlag{Name: "facing", Usage: "Camera facing: environment|user"},
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Print the result as a Markdown card"},
		},
		Action: func(c *cli.Context) error {
			input := ops.IdentifyInput{
				Camera: c.Bool("camera"),
				Facing: c.String("facing"),
			}

			switch {
			case c.NArg() > 0 && c.Args().First() != "-":
				input.Path = c.Args().First()
			case !input.Camera && stdinHasData():
				data, err := readStdin(MaxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if len(data) > 0 {
					input.Image = imaging.EncodeDataURI("", data)
				}
			}

			output, err := ops.Identify(c.Context, p, input)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("markdown") {
				_, err := fmt.Fprint(os.Stdout, fish.Markdown(output.Analysis))
				return err
			}
			return outputJSON(output)
		},
	}
}

// NormalizeOutput is printed by the normalize command.
type NormalizeOutput struct {
	Path       string `json:"path,omitempty"`
	Image      string `json:"image,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	OriginalKB int    `json:"original_kb"`
	SizeKB     int    `json:"size_kb"`
}

// normalizeCmd creates the normalize command.
func normalizeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "Downscale and re-encode an image the way identify does",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the JPEG here instead of printing a data URI"},
			&cli.IntFlag{Name: "max-dimension", Usage: "Longest edge in pixels (default from config)"},
			&cli.Float64Flag{Name: "quality", Usage: "JPEG quality in (0,1] (default from config)"},
		},
		Action: func(c *cli.Context) error {
			var data []byte
			var err error
			switch {
			case c.NArg() > 0 && c.Args().First() != "-":
				data, err = os.ReadFile(c.Args().First())
				if os.IsNotExist(err) {
					return outputError(errors.NewFileNotFound(c.Args().First()))
				}
			case stdinHasData():
				data, err = readStdin(MaxStdinBytes)
			default:
				return outputError(errors.NewMissingInput("an image file or piped image is required"))
			}
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			maxDimension, quality := imaging.DefaultMaxDimension, imaging.DefaultQuality
			if cfg != nil {
				maxDimension, quality = cfg.MaxDimension, cfg.Quality
			}
			if c.IsSet("max-dimension") {
				maxDimension = c.Int("max-dimension")
			}
			if c.IsSet("quality") {
				quality = c.Float64("quality")
			}

			original := imaging.EncodeDataURI("", data)
			normalized, err := imaging.Normalize(original, maxDimension, quality)
			if err != nil {
				return outputError(err)
			}
			uri, err := imaging.ParseDataURI(normalized)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			dims, _, err := image.DecodeConfig(bytes.NewReader(uri.Data))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			output := NormalizeOutput{
				Width:      dims.Width,
				Height:     dims.Height,
				OriginalKB: imaging.EstimateSizeKB(original),
				SizeKB:     imaging.EstimateSizeKB(normalized),
			}
			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, uri.Data, 0o644); err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("cannot write %s: %v", out, err)))
				}
				output.Path = out
			} else {
				output.Image = normalized
			}
			return outputJSON(output)
		},
	}
}

// historyCmd groups the history subcommands.
func historyCmd(p ops.Pipeline, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and manage past identifications",
		Subcommands: []*cli.Command{
			historyListCmd(p),
			historyShowCmd(p),
			historyRemoveCmd(p),
			historyClearCmd(p),
			historyExportCmd(p, cfg),
			historyImportCmd(p, cfg),
		},
	}
}

// historyListCmd creates the history list command.
func historyListCmd(p ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List entries, newest first (a table on terminals, JSON otherwise)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "json", Usage: "Always print JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("limit") < 0 || c.Int("offset") < 0 {
				return outputError(errors.NewInvalidRequest("limit and offset must not be negative"))
			}
			output := ops.List(p.History, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})

			if !c.Bool("json") && isTTY(os.Stdout) {
				_, err := fmt.Fprintln(os.Stdout, renderHistoryTable(output))
				return err
			}
			return outputJSON(output)
		},
	}
}

// historyShowCmd creates the history show command.
func historyShowCmd(p ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one entry",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Print the result as a Markdown card"},
			&cli.BoolFlag{Name: "include-image", Usage: "Include the stored image data URI"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(p.History, ops.FetchInput{
				ID:           c.Args().First(),
				IncludeImage: c.Bool("include-image"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("markdown") {
				_, err := fmt.Fprint(os.Stdout, fish.Markdown(&output.Analysis))
				return err
			}
			return outputJSON(output)
		},
	}
}

// historyRemoveCmd creates the history remove command.
func historyRemoveCmd(p ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove one entry (unknown ids are a no-op)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Remove(c.Context, p.History, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyClearCmd creates the history clear command.
func historyClearCmd(p ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every entry",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm clearing the history"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(c.Context, p.History, c.Bool("yes"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyExportCmd creates the history export command.
func historyExportCmd(p ops.Pipeline, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the history to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.fishscroll/exports/history-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, p.History, cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyImportCmd creates the history import command.
func historyImportCmd(p ops.Pipeline, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import history entries from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, p.History, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command: the analysis backend.
func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the analysis backend (POST /api/analyze)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config listen_addr)"},
		},
		Action: func(c *cli.Context) error {
			model, err := backend.NewModel(backend.ModelConfig{
				Provider:      cfg.Provider,
				OpenAIKey:     cfg.OpenAIAPIKey,
				OpenAIModel:   cfg.OpenAIModel,
				OpenAIBaseURL: cfg.OpenAIBaseURL,
				GeminiKey:     cfg.GeminiAPIKey,
				GeminiModel:   cfg.GeminiModel,
			})
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			var opts []backend.ServerOption
			if store, err := newArchive(c.Context, cfg); err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("archive: %v", err)))
			} else if store != nil {
				opts = append(opts, backend.WithArchiver(store))
			}

			addr := cfg.ListenAddr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           backend.NewServer(model, opts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return backend.Run(srv)
		},
	}
}

// newArchive connects the capture archive when it is configured. It returns
// nil, nil when archiving is off.
func newArchive(ctx context.Context, cfg *config.Config) (*archive.Store, error) {
	acfg := archive.Config{
		Endpoint:  cfg.ArchiveEndpoint,
		Region:    cfg.ArchiveRegion,
		Bucket:    cfg.ArchiveBucket,
		AccessKey: cfg.ArchiveAccessKey,
		SecretKey: cfg.ArchiveSecretKey,
		UseSSL:    cfg.ArchiveUseSSL,
	}
	if !acfg.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return archive.New(ctx, acfg)
}

// uiCmd creates the ui command: the local history viewer.
func uiCmd(p ops.Pipeline, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Run the local web history viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: DefaultUIAddr, Usage: "Listen address"},
		},
		Action: func(c *cli.Context) error {
			return web.Run(c.Context, web.NewServer(p, cfg, Version, c.String("addr")))
		},
	}
}

// mcpCmd creates the mcp command, the same as running with piped stdin and
// no arguments.
func mcpCmd(p ops.Pipeline, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return runMCP(p, cfg)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if fErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", fErr.Code, fErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all of stdin, failing if it exceeds limit bytes.
func readStdin(limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return data, nil
}
