package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/fishscroll/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"fish_identify": {
		def:     identifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentify },
	},
	"fish_history_list": {
		def:     historyListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryList },
	},
	"fish_history_fetch": {
		def:     historyFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryFetch },
	},
	"fish_history_remove": {
		def:     historyRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryRemove },
	},
	"fish_history_clear": {
		def:     historyClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryClear },
	},
	"fish_history_export": {
		def:     historyExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryExport },
	},
	"fish_history_import": {
		def:     historyImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the fish tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fishscroll",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, cfg *config.Config, version string) error {
	s := NewServer(deps, cfg, version)
	return server.ServeStdio(s)
}
