package mcp

import "github.com/mark3labs/mcp-go/mcp"

var identifyToolDef = mcp.NewTool("fish_identify",
	mcp.WithDescription("Identify the sashimi in a photo. Provide exactly one source: "+
		"image (data URI), path (local image file) or camera=true (snapshot from the configured camera). "+
		"The image is downscaled and re-encoded as JPEG before analysis. Successful results are added to history."),
	mcp.WithString("image",
		mcp.Description("Image as a base64 data URI, e.g. data:image/jpeg;base64,..."),
	),
	mcp.WithString("path",
		mcp.Description("Path to a local image file"),
	),
	mcp.WithBoolean("camera",
		mcp.Description("Take a snapshot from the configured camera"),
	),
	mcp.WithString("facing",
		mcp.Description("Camera to use with camera=true. Default: environment (rear)"),
		mcp.Enum("environment", "user"),
	),
	mcp.WithString("format",
		mcp.Description("Response format. Default: json"),
		mcp.Enum("json", "markdown"),
	),
)

var historyListToolDef = mcp.NewTool("fish_history_list",
	mcp.WithDescription("List past identifications, newest first. Images are omitted; use fish_history_fetch for a full entry."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit",
		mcp.Description("Maximum entries to return. Default: 20"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Entries to skip. Default: 0"),
	),
)

var historyFetchToolDef = mcp.NewTool("fish_history_fetch",
	mcp.WithDescription("Fetch one history entry by id."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("History entry id"),
	),
	mcp.WithBoolean("include_image",
		mcp.Description("Include the stored image data URI. Default: false"),
	),
	mcp.WithString("format",
		mcp.Description("Response format. Default: json"),
		mcp.Enum("json", "markdown"),
	),
)

var historyRemoveToolDef = mcp.NewTool("fish_history_remove",
	mcp.WithDescription("Remove one history entry. Removing an unknown id is a no-op."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("History entry id"),
	),
)

var historyClearToolDef = mcp.NewTool("fish_history_clear",
	mcp.WithDescription("Remove every history entry. Requires confirm=true."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithBoolean("confirm",
		mcp.Required(),
		mcp.Description("Must be true"),
	),
)

var historyExportToolDef = mcp.NewTool("fish_history_export",
	mcp.WithDescription("Export the history to a JSONL file (header line plus one entry per line). "+
		"The path must be directly inside ~/.fishscroll/exports or a configured allowed_paths directory."),
	mcp.WithString("path",
		mcp.Description("Destination .jsonl file. Default: ~/.fishscroll/exports/history-<timestamp>.jsonl"),
	),
)

var historyImportToolDef = mcp.NewTool("fish_history_import",
	mcp.WithDescription("Import history entries from a JSONL export file."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Source .jsonl file"),
	),
	mcp.WithString("mode",
		mcp.Description("error: import nothing if any line is bad or any id exists (default); "+
			"replace: overwrite entries with the same id; skip: keep existing entries and skip bad lines"),
		mcp.Enum("error", "replace", "skip"),
	),
)
