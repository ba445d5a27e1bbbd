package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// TestFullWorkflow exercises the complete history lifecycle:
// identify → list → fetch → export → clear → import → remove → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	analyzer := &fakeAnalyzer{result: redSeabream()}
	p := newPipeline(t, analyzer, nil)

	// 1. Identify
	idOut, err := Identify(ctx, p, IdentifyInput{Image: imaging.EncodeDataURI("image/png", pngBytes(t, 120, 80))})
	require.NoError(t, err)
	require.NotEmpty(t, idOut.EntryID)
	require.False(t, idOut.Analysis.NeedsAlternatives())
	id := idOut.EntryID

	// 2. List
	listOut := List(p.History, ListInput{})
	require.Len(t, listOut.Items, 1)
	require.Equal(t, id, listOut.Items[0].ID)
	require.Equal(t, "Red Seabream", listOut.Items[0].FishNameEn)

	// 3. Fetch with image
	fetchOut, err := Fetch(p.History, FetchInput{ID: id, IncludeImage: true})
	require.NoError(t, err)
	require.Equal(t, analyzer.images[0], fetchOut.Image)

	// 4. Export
	exportOut, err := Export(ctx, p.History, cfg, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 1, exportOut.Count)

	// 5. Clear
	clearOut, err := Clear(ctx, p.History, true)
	require.NoError(t, err)
	require.Equal(t, 1, clearOut.Cleared)
	require.Zero(t, p.History.Len())

	// 6. Import restores the entry
	importOut, err := Import(ctx, p.History, cfg, ImportInput{Path: exportOut.Path})
	require.NoError(t, err)
	require.Equal(t, 1, importOut.Imported)

	fetchOut, err = Fetch(p.History, FetchInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, "참돔", fetchOut.Analysis.FishName)

	// 7. Remove
	removeOut, err := Remove(ctx, p.History, id)
	require.NoError(t, err)
	require.True(t, removeOut.Removed)

	// 8. Fetch - not found
	_, err = Fetch(p.History, FetchInput{ID: id})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
