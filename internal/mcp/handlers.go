package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/fishscroll/internal/capture"
	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
	"github.com/hpungsan/fishscroll/internal/ops"
	"github.com/hpungsan/fishscroll/internal/session"
)

// Deps are the components the tools operate on.
type Deps struct {
	History  *history.Store
	Analyzer session.Analyzer
	Capture  *capture.Source
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
	cfg  *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, cfg *config.Config) *Handlers {
	return &Handlers{deps: deps, cfg: cfg}
}

// Request types for each tool

// IdentifyRequest represents the arguments for fish_identify.
type IdentifyRequest struct {
	Image  string `json:"image,omitempty"`
	Path   string `json:"path,omitempty"`
	Camera bool   `json:"camera,omitempty"`
	Facing string `json:"facing,omitempty"`
	Format string `json:"format,omitempty"`
}

// HistoryListRequest represents the arguments for fish_history_list.
type HistoryListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// HistoryFetchRequest represents the arguments for fish_history_fetch.
type HistoryFetchRequest struct {
	ID           string `json:"id"`
	IncludeImage bool   `json:"include_image,omitempty"`
	Format       string `json:"format,omitempty"`
}

// HistoryRemoveRequest represents the arguments for fish_history_remove.
type HistoryRemoveRequest struct {
	ID string `json:"id"`
}

// HistoryClearRequest represents the arguments for fish_history_clear.
type HistoryClearRequest struct {
	Confirm bool `json:"confirm"`
}

// HistoryExportRequest represents the arguments for fish_history_export.
type HistoryExportRequest struct {
	Path string `json:"path,omitempty"`
}

// HistoryImportRequest represents the arguments for fish_history_import.
type HistoryImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// HandleIdentify handles the fish_identify tool.
func (h *Handlers) HandleIdentify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[IdentifyRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	markdown, err := wantMarkdown(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Identify(ctx, ops.Pipeline{
		Capture:  h.deps.Capture,
		Analyzer: h.deps.Analyzer,
		History:  h.deps.History,
	}, ops.IdentifyInput{
		Image:  input.Image,
		Path:   input.Path,
		Camera: input.Camera,
		Facing: input.Facing,
	})
	if err != nil {
		return errorResult(err), nil
	}

	if markdown {
		return mcp.NewToolResultText(fish.Markdown(result.Analysis)), nil
	}
	return successResult(result)
}

// HandleHistoryList handles the fish_history_list tool.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Limit < 0 || input.Offset < 0 {
		return errorResult(errors.NewInvalidRequest("limit and offset must not be negative")), nil
	}

	return successResult(ops.List(h.deps.History, ops.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	}))
}

// HandleHistoryFetch handles the fish_history_fetch tool.
func (h *Handlers) HandleHistoryFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryFetchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	markdown, err := wantMarkdown(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Fetch(h.deps.History, ops.FetchInput{
		ID:           input.ID,
		IncludeImage: input.IncludeImage,
	})
	if err != nil {
		return errorResult(err), nil
	}

	if markdown {
		return mcp.NewToolResultText(fish.Markdown(&result.Analysis)), nil
	}
	return successResult(result)
}

// HandleHistoryRemove handles the fish_history_remove tool.
func (h *Handlers) HandleHistoryRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryRemoveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Remove(ctx, h.deps.History, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryClear handles the fish_history_clear tool.
func (h *Handlers) HandleHistoryClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryClearRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Clear(ctx, h.deps.History, input.Confirm)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryExport handles the fish_history_export tool.
func (h *Handlers) HandleHistoryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.deps.History, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryImport handles the fish_history_import tool.
func (h *Handlers) HandleHistoryImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Import(ctx, h.deps.History, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

func wantMarkdown(format string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return false, nil
	case "markdown", "md":
		return true, nil
	}
	return false, errors.NewInvalidRequest("format must be json or markdown")
}

// errorResult converts an error to an MCP error result.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if fErr, ok := errors.As(err); ok {
		// Keep context added by wrapping, e.g. "identify: NOT_FOUND: ..."
		message := fErr.Message
		if prefix, found := strings.CutSuffix(err.Error(), fErr.Error()); found && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    fErr.Code,
			"message": message,
			"status":  fErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if fErr.Code != errors.ErrInternal && fErr.Details != nil {
			errorObj["details"] = fErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a successful MCP result with JSON content.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
