package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/history"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxImportLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestExport_DefaultPath(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)
	addEntries(t, store, "광어", "참돔")

	out, err := Export(context.Background(), store, cfg, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
	require.Equal(t, cfg.ExportsDir(), filepath.Dir(out.Path))
	require.True(t, strings.HasPrefix(filepath.Base(out.Path), "history-"))

	lines := readLines(t, out.Path)
	require.Len(t, lines, 3)

	var header ExportHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	require.True(t, header.FishscrollExport)
	require.Equal(t, ExportSchemaVersion, header.SchemaVersion)

	var first history.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &first))
	require.Equal(t, "참돔", first.Analysis.FishName, "newest first")

	matches, err := filepath.Glob(filepath.Join(cfg.ExportsDir(), "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, matches, "temp file is renamed away")
}

func TestExport_RejectsPathOutsideAllowedDirs(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)

	_, err := Export(context.Background(), store, cfg, ExportInput{Path: filepath.Join(t.TempDir(), "out.jsonl")})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestExport_CancelledKeepsExistingFile(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)
	addEntries(t, store, "광어")

	path := filepath.Join(cfg.ExportsDir(), "keep.jsonl")
	writeFile(t, path, "original\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Export(ctx, store, cfg, ExportInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrCancelled))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original\n", string(data))
}

func TestImport_RoundTrip(t *testing.T) {
	cfg := testConfig(t)
	src := openStore(t)
	entries := addEntries(t, src, "광어", "참돔", "연어")

	exported, err := Export(context.Background(), src, cfg, ExportInput{Path: filepath.Join(cfg.ExportsDir(), "all.jsonl")})
	require.NoError(t, err)

	dst := openStore(t)
	out, err := Import(context.Background(), dst, cfg, ImportInput{Path: exported.Path})
	require.NoError(t, err)
	require.Equal(t, 3, out.Imported)
	require.Zero(t, out.Skipped)
	require.Empty(t, out.Errors)

	got := dst.List()
	require.Len(t, got, 3)
	require.Equal(t, entries[2].ID, got[0].ID)
	require.Equal(t, entries[0].ID, got[2].ID)
	require.Equal(t, entries[1].Analysis, got[1].Analysis)
}

func TestImport_Modes(t *testing.T) {
	cfg := testConfig(t)
	src := openStore(t)
	addEntries(t, src, "광어", "참돔")
	exported, err := Export(context.Background(), src, cfg, ExportInput{Path: filepath.Join(cfg.ExportsDir(), "two.jsonl")})
	require.NoError(t, err)

	// Half of the file is already present in dst
	lines := readLines(t, exported.Path)
	var existing history.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &existing))
	existing.Analysis.FishName = "로컬"

	newDst := func(t *testing.T) *history.Store {
		dst := openStore(t)
		_, err := dst.Merge(context.Background(), []history.Entry{existing}, false)
		require.NoError(t, err)
		return dst
	}

	t.Run("error aborts on collision", func(t *testing.T) {
		dst := newDst(t)
		out, err := Import(context.Background(), dst, cfg, ImportInput{Path: exported.Path})
		require.NoError(t, err)
		require.Zero(t, out.Imported)
		require.Len(t, out.Errors, 1)
		require.Equal(t, "ID_COLLISION", out.Errors[0].Code)
		require.Equal(t, 1, dst.Len())
	})

	t.Run("skip keeps local", func(t *testing.T) {
		dst := newDst(t)
		out, err := Import(context.Background(), dst, cfg, ImportInput{Path: exported.Path, Mode: ImportModeSkip})
		require.NoError(t, err)
		require.Equal(t, 1, out.Imported)
		require.Equal(t, 1, out.Skipped)
		got, ok := dst.Get(existing.ID)
		require.True(t, ok)
		require.Equal(t, "로컬", got.Analysis.FishName)
	})

	t.Run("replace overwrites", func(t *testing.T) {
		dst := newDst(t)
		out, err := Import(context.Background(), dst, cfg, ImportInput{Path: exported.Path, Mode: ImportModeReplace})
		require.NoError(t, err)
		require.Equal(t, 2, out.Imported)
		got, ok := dst.Get(existing.ID)
		require.True(t, ok)
		require.NotEqual(t, "로컬", got.Analysis.FishName)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Import(context.Background(), openStore(t), cfg, ImportInput{Path: exported.Path, Mode: "merge"})
		require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})
}

func TestImport_BadLines(t *testing.T) {
	cfg := testConfig(t)
	src := openStore(t)
	entries := addEntries(t, src, "광어")
	good, err := json.Marshal(entries[0])
	require.NoError(t, err)

	invalid := entries[0]
	invalid.ID = "01INVALID"
	invalid.Analysis.Confidence = 140
	bad, err := json.Marshal(invalid)
	require.NoError(t, err)

	path := filepath.Join(cfg.ExportsDir(), "mixed.jsonl")
	writeFile(t, path, strings.Join([]string{
		`{"_fishscroll_export":true,"schema_version":"1.0","exported_at":1}`,
		`{not json`,
		`{"image":"data:image/jpeg;base64,AA=="}`,
		string(bad),
		string(good),
	}, "\n")+"\n")

	out, err := Import(context.Background(), openStore(t), cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Len(t, out.Errors, 3)
	require.Equal(t, "PARSE_ERROR", out.Errors[0].Code)
	require.Equal(t, 2, out.Errors[0].Line)
	require.Equal(t, "INVALID_RECORD", out.Errors[1].Code)
	require.Equal(t, "INVALID_RECORD", out.Errors[2].Code)
	require.Equal(t, "01INVALID", out.Errors[2].ID)

	dst := openStore(t)
	out, err = Import(context.Background(), dst, cfg, ImportInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Equal(t, 1, out.Imported)
	require.Len(t, out.Errors, 3)
	require.Equal(t, 1, dst.Len())
}

func TestImport_MissingFile(t *testing.T) {
	cfg := testConfig(t)

	_, err := Import(context.Background(), openStore(t), cfg, ImportInput{Path: filepath.Join(cfg.ExportsDir(), "missing.jsonl")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}
