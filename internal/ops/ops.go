package ops

import (
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Summary is a history entry without its image.
type Summary struct {
	ID         string         `json:"id"`
	FishName   string         `json:"fish_name"`
	FishNameEn string         `json:"fish_name_en"`
	FishNameJp string         `json:"fish_name_jp"`
	Confidence int            `json:"confidence"`
	Price      fish.PriceTier `json:"price"`
	Season     string         `json:"season"`
	Timestamp  int64          `json:"timestamp"`
	ImageKB    int            `json:"image_kb"`
}

// Summarize builds the list view of e.
func Summarize(e history.Entry) Summary {
	return Summary{
		ID:         e.ID,
		FishName:   e.Analysis.FishName,
		FishNameEn: e.Analysis.FishNameEn,
		FishNameJp: e.Analysis.FishNameJp,
		Confidence: e.Analysis.Confidence,
		Price:      e.Analysis.Price,
		Season:     e.Analysis.Season,
		Timestamp:  e.Timestamp,
		ImageKB:    imaging.EstimateSizeKB(e.Image),
	}
}
