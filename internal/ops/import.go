package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
)

// MaxImportLineBytes bounds one JSONL line. Entries carry their image inline.
const MaxImportLineBytes = 32 << 20

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any bad line or id collision, import nothing
	ImportModeReplace ImportMode = "replace" // overwrite entries with the same id
	ImportModeSkip    ImportMode = "skip"    // keep existing entries, skip bad lines
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
	Warning  string        `json:"warning,omitempty"`
}

// ImportError describes one rejected line or entry.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line  int
	entry history.Entry
}

// Import merges entries from a JSONL export file into the history.
func Import(ctx context.Context, store *history.Store, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeReplace, ImportModeSkip:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, importErrors := parseExportFile(ctx, file)
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("import")
	}

	if input.Mode == ImportModeError {
		for _, r := range records {
			if _, exists := store.Get(r.entry.ID); exists {
				importErrors = append(importErrors, ImportError{
					Line:    r.line,
					ID:      r.entry.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("history entry %q already exists", r.entry.ID),
				})
			}
		}
		if len(importErrors) > 0 {
			return &ImportOutput{Errors: importErrors}, nil
		}
	}

	entries := make([]history.Entry, len(records))
	for i, r := range records {
		entries[i] = r.entry
	}

	out := &ImportOutput{Errors: importErrors}
	n, err := store.Merge(ctx, entries, input.Mode == ImportModeReplace)
	if err != nil {
		warning, err := asWarning(err)
		if err != nil {
			return nil, err
		}
		out.Warning = warning
	}
	out.Imported = n
	out.Skipped = len(records) - n
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	return out, nil
}

// parseExportFile reads entries from r, skipping the header line.
func parseExportFile(ctx context.Context, r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var importErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxImportLineBytes)
	lineNum := 0

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, nil
		}
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(line, &header); err == nil && header.FishscrollExport {
			continue
		}

		var entry history.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			importErrors = append(importErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if entry.ID == "" {
			importErrors = append(importErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}
		if err := fish.Validate(&entry.Analysis); err != nil {
			importErrors = append(importErrors, ImportError{
				Line:    lineNum,
				ID:      entry.ID,
				Code:    "INVALID_RECORD",
				Message: err.Error(),
			})
			continue
		}

		records = append(records, importRecord{line: lineNum, entry: entry})
	}

	if err := scanner.Err(); err != nil {
		importErrors = append(importErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, importErrors
}
