// Package portfolio implements the aggregation core: classification,
// segment merging, and recomputation of derived portfolio figures.
package portfolio

import (
	"strings"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

// Keyword sets scanned in fixed priority order: equity > debt > hybrid > gold.
// First matching category wins regardless of keyword position in the name.
var (
	equityKeywords = []string{
		"equity", "flexi cap", "flexicap", "large cap", "largecap", "mid cap", "midcap",
		"small cap", "smallcap", "multi cap", "multicap", "focused", "elss", "tax saver",
		"bluechip", "blue chip", "value fund", "contra", "dividend yield", "index fund",
		"nifty", "sensex", "etf", "exchange traded", "thematic", "sectoral", "pharma",
		"banking", "infrastructure", "consumption", "technology", "it fund",
	}

	debtKeywords = []string{
		"debt", "liquid", "overnight", "ultra short", "money market",
		"low duration", "short duration", "medium duration", "long duration",
		"gilt", "corporate bond", "credit risk", "banking & psu", "psu bond",
		"floater", "fixed maturity", "fmp", "income fund", "bond fund",
	}

	hybridKeywords = []string{
		"hybrid", "balanced", "aggressive hybrid", "conservative hybrid", "dynamic",
		"asset allocation", "multi asset", "arbitrage", "equity savings", "balanced advantage",
	}

	goldKeywords = []string{"gold", "precious metal", "commodities", "silver"}
)

var keywordCategories = []struct {
	class    models.AssetClass
	keywords []string
}{
	{models.AssetClassEquity, equityKeywords},
	{models.AssetClassDebt, debtKeywords},
	{models.AssetClassHybrid, hybridKeywords},
	{models.AssetClassGold, goldKeywords},
}

// Classify assigns an asset class to a scheme based on its name and an
// optional type hint from the source document. Deterministic,
// case-insensitive, and total: unclassifiable input is valid data, not an
// error, and maps to Other.
func Classify(schemeName, schemeType string) models.AssetClass {
	name := strings.ToLower(schemeName)

	if schemeType != "" {
		typeHint := strings.ToLower(schemeType)
		switch {
		case strings.Contains(typeHint, "equity"):
			return models.AssetClassEquity
		case strings.Contains(typeHint, "debt"), strings.Contains(typeHint, "liquid"):
			return models.AssetClassDebt
		case strings.Contains(typeHint, "hybrid"):
			return models.AssetClassHybrid
		}
	}

	for _, cat := range keywordCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(name, kw) {
				return cat.class
			}
		}
	}

	if strings.Contains(name, "growth") && strings.Contains(name, "fund") {
		return models.AssetClassEquity
	}

	return models.AssetClassOther
}
