package ops

import (
	"strings"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID           string
	IncludeImage bool
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	ID        string        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	Image     string        `json:"image,omitempty"`
	ImageKB   int           `json:"image_kb"`
	Analysis  fish.Analysis `json:"analysis"`
}

// Fetch retrieves a single history entry by id.
func Fetch(store *history.Store, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	entry, ok := store.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	out := &FetchOutput{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		ImageKB:   imaging.EstimateSizeKB(entry.Image),
		Analysis:  entry.Analysis,
	}
	if input.IncludeImage {
		out.Image = entry.Image
	}
	return out, nil
}
