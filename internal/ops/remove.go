package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/history"
)

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
	Warning string `json:"warning,omitempty"`
}

// Remove deletes one history entry. An unknown id succeeds with Removed=false.
func Remove(ctx context.Context, store *history.Store, id string) (*RemoveOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	_, existed := store.Get(id)
	out := &RemoveOutput{ID: id, Removed: existed}
	if err := store.Remove(ctx, id); err != nil {
		warning, err := asWarning(err)
		if err != nil {
			return nil, err
		}
		out.Warning = warning
	}
	return out, nil
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Cleared int    `json:"cleared"`
	Warning string `json:"warning,omitempty"`
}

// Clear removes every history entry. confirm must be true.
func Clear(ctx context.Context, store *history.Store, confirm bool) (*ClearOutput, error) {
	if !confirm {
		return nil, errors.NewInvalidRequest("confirm must be true to clear history")
	}

	out := &ClearOutput{Cleared: store.Len()}
	if err := store.Clear(ctx); err != nil {
		warning, err := asWarning(err)
		if err != nil {
			return nil, err
		}
		out.Warning = warning
	}
	return out, nil
}

// asWarning turns a persistence warning into its message. Any other error is
// returned unchanged.
func asWarning(err error) (string, error) {
	if fErr, ok := errors.As(err); ok && fErr.Code == errors.ErrPersistenceWarning {
		return fErr.Message, nil
	}
	return "", err
}
