package fish

import (
	"slices"
	"strings"
)

// ConfidenceLow is the confidence below which the model is asked to list
// alternative species.
const ConfidenceLow = 70

// PriceTier is the fixed price enumeration. Values are the canonical wire
// labels used by the model contract.
type PriceTier string

const (
	PriceCheap   PriceTier = "저렴"
	PriceNormal  PriceTier = "보통"
	PricePremium PriceTier = "고급"
	PriceTopTier PriceTier = "최고급"
)

// priceNames maps each tier to its English name.
var priceNames = map[PriceTier]string{
	PriceCheap:   "cheap",
	PriceNormal:  "normal",
	PricePremium: "premium",
	PriceTopTier: "top-tier",
}

// ParsePriceTier accepts a canonical label or its English name.
func ParsePriceTier(s string) (PriceTier, bool) {
	s = strings.TrimSpace(s)
	if _, ok := priceNames[PriceTier(s)]; ok {
		return PriceTier(s), true
	}
	lower := strings.ToLower(s)
	for tier, name := range priceNames {
		if lower == name {
			return tier, true
		}
	}
	return "", false
}

// English returns the English name of the tier ("cheap", "normal", ...).
func (p PriceTier) English() string {
	return priceNames[p]
}

// Alternative is a candidate species guess with its probability (0-100).
type Alternative struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
}

// Analysis is the structured identification result for one image.
type Analysis struct {
	// FishName is the species name in Korean
	FishName string `json:"fishName"`

	FishNameEn string `json:"fishNameEn"`
	FishNameJp string `json:"fishNameJp"`

	// Confidence is an integer percentage 0-100
	Confidence int `json:"confidence"`

	Characteristics []string  `json:"characteristics"`
	Taste           string    `json:"taste"`
	Texture         string    `json:"texture"`
	Season          string    `json:"season"`
	Price           PriceTier `json:"price"`
	Recommendations []string  `json:"recommendations"`
	Nutrition       string    `json:"nutrition"`

	// Warning is an optional caution sentence
	Warning string `json:"warning,omitempty"`

	// Alternatives is only populated by the model when Confidence < ConfidenceLow
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// NeedsAlternatives reports whether the confidence is low enough that the
// model contract asks for alternative guesses.
func (a *Analysis) NeedsAlternatives() bool {
	return a.Confidence < ConfidenceLow
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (a Analysis) Clone() Analysis {
	a.Characteristics = slices.Clone(a.Characteristics)
	a.Recommendations = slices.Clone(a.Recommendations)
	a.Alternatives = slices.Clone(a.Alternatives)
	return a
}

// DisplayName returns "Korean (English)" or whichever part is present.
func (a *Analysis) DisplayName() string {
	switch {
	case a.FishNameEn == "":
		return a.FishName
	case a.FishName == "":
		return a.FishNameEn
	default:
		return a.FishName + " (" + a.FishNameEn + ")"
	}
}
