package fish

import (
	"fmt"
	"strings"
)

// Markdown renders an analysis as a Markdown card. Sections mirror the
// on-screen result card: names, confidence, the descriptive blocks, then the
// optional warning and alternatives.
func Markdown(a *Analysis) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", a.FishName)
	var names []string
	if a.FishNameEn != "" {
		names = append(names, a.FishNameEn)
	}
	if a.FishNameJp != "" {
		names = append(names, a.FishNameJp)
	}
	if len(names) > 0 {
		fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(names, " / "))
	}

	price := string(a.Price)
	if en := a.Price.English(); en != "" {
		price = fmt.Sprintf("%s (%s)", a.Price, en)
	}
	fmt.Fprintf(&sb, "**Confidence:** %d%% | **Price:** %s | **Season:** %s\n\n", a.Confidence, price, a.Season)

	if a.Warning != "" {
		fmt.Fprintf(&sb, "> **Warning:** %s\n\n", a.Warning)
	}

	sb.WriteString("## Characteristics\n\n")
	for _, c := range a.Characteristics {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Taste\n\n%s\n\n", a.Taste)
	fmt.Fprintf(&sb, "## Texture\n\n%s\n\n", a.Texture)

	sb.WriteString("## How to Enjoy\n\n")
	for i, r := range a.Recommendations {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Nutrition\n\n%s\n", a.Nutrition)

	if len(a.Alternatives) > 0 {
		sb.WriteString("\n## Alternatives\n\n")
		sb.WriteString("| Name | Probability |\n|---|---|\n")
		for _, alt := range a.Alternatives {
			fmt.Fprintf(&sb, "| %s | %d%% |\n", escapeCell(alt.Name), alt.Probability)
		}
	}

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
