package ops

import (
	"github.com/hpungsan/fishscroll/internal/history"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []Summary  `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// List returns history summaries, newest first, with pagination.
func List(store *history.Store, input ListInput) *ListOutput {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	entries := store.List()
	total := len(entries)

	items := []Summary{}
	if offset < total {
		end := min(offset+limit, total)
		for _, e := range entries[offset:end] {
			items = append(items, Summarize(e))
		}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "timestamp_desc",
	}
}
