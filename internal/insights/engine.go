// Package insights evaluates the configured rule set against a recomputed
// portfolio to produce risks, actionables, opportunities, and a health score.
package insights

import (
	"fmt"
	"strings"

	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/rules"
)

// Evaluate runs every sub-evaluation against the portfolio and returns a
// freshly built InsightSet. Deterministic given identical portfolio and
// rules; total over any well-formed portfolio. Degenerate inputs (no
// holdings, zero totals) short-circuit to "no insight", never an error.
func Evaluate(p *models.Portfolio, store *rules.Store) *models.InsightSet {
	set := &models.InsightSet{
		SummaryInsights: []models.Insight{},
		Risks:           []models.Insight{},
		Actionables:     []models.Actionable{},
		Opportunities:   []models.Opportunity{},
	}

	analyzeConcentration(p, store, set)
	analyzeAssetAllocation(p, store, set)
	analyzeAMCConcentration(p, store, set)
	analyzePerformance(p, store, set)
	detectOverlap(p, store, set)
	set.HealthScore = calculateHealthScore(p, store, set)

	return set
}

// analyzeConcentration checks the top holding's share of total value against
// the high and moderate thresholds (high first, at most one risk), and flags
// fragmented portfolios.
func analyzeConcentration(p *models.Portfolio, store *rules.Store, set *models.InsightSet) {
	totalValue := p.Summary.TotalValue
	if totalValue == 0 || len(p.Holdings) == 0 {
		return
	}

	top := p.Holdings[0]
	for _, h := range p.Holdings[1:] {
		if h.CurrentValue > top.CurrentValue {
			top = h
		}
	}
	topShare := top.CurrentValue / totalValue * 100

	cr := store.Concentration
	switch {
	case topShare > cr.HighThresholdPct:
		set.Risks = append(set.Risks, models.Insight{
			Type:        "high_concentration",
			Severity:    models.SeverityHigh,
			Title:       "High Single Fund Concentration",
			Description: fmt.Sprintf("Your largest holding '%s' represents %.1f%% of your portfolio.", truncate(top.SchemeName, 40), topShare),
			Recommendation: fmt.Sprintf("Consider rebalancing to reduce concentration below %.0f%% in any single fund.",
				cr.ModerateThresholdPct),
		})
	case topShare > cr.ModerateThresholdPct:
		set.Risks = append(set.Risks, models.Insight{
			Type:           "moderate_concentration",
			Severity:       models.SeverityMedium,
			Title:          "Moderate Concentration Risk",
			Description:    fmt.Sprintf("Your top fund represents %.1f%% of portfolio.", topShare),
			Recommendation: "Monitor this position and consider gradual diversification.",
		})
	}

	schemeCount := p.Summary.SchemeCount
	if schemeCount > cr.OverDiversifiedCount {
		set.Risks = append(set.Risks, models.Insight{
			Type:           "over_diversification",
			Severity:       models.SeverityMedium,
			Title:          "Portfolio Over-Diversification",
			Description:    fmt.Sprintf("You have %d schemes which may be difficult to track and manage.", schemeCount),
			Recommendation: fmt.Sprintf("Consider consolidating into %d well-chosen funds for better manageability.", cr.ConsolidationTarget),
		})
		set.Actionables = append(set.Actionables, models.Actionable{
			Priority:    models.SeverityMedium,
			Action:      "Consolidate Portfolio",
			Description: fmt.Sprintf("Review and merge similar funds. Target: reduce from %d to ~%d schemes.", schemeCount, cr.ConsolidationTarget),
			Impact:      "Easier tracking, lower overlap, potentially lower costs",
		})
	}
}

// analyzeAssetAllocation emits exactly one allocation summary (aggressive,
// conservative, or balanced; aggressive checked first) plus its actionable
// when non-balanced. Equity-like exposure combines domestic and US equity.
func analyzeAssetAllocation(p *models.Portfolio, store *rules.Store, set *models.InsightSet) {
	if p.Summary.TotalValue == 0 {
		return
	}

	var equityPct, debtPct float64
	for _, a := range p.AssetAllocation {
		switch a.AssetClass {
		case models.AssetClassEquity.DisplayName(), models.AssetClassUSEquity.DisplayName():
			equityPct += a.Percentage
		case models.AssetClassDebt.DisplayName():
			debtPct = a.Percentage
		}
	}

	ar := store.AssetAllocation
	switch {
	case equityPct >= ar.AggressiveEquityPct:
		set.SummaryInsights = append(set.SummaryInsights, models.Insight{
			Type:        "allocation",
			Title:       "Aggressive Portfolio",
			Description: fmt.Sprintf("Your portfolio is %.0f%% in equity - suitable for long-term goals (7+ years) with high risk tolerance.", equityPct),
		})
		set.Actionables = append(set.Actionables, models.Actionable{
			Priority:    models.SeverityLow,
			Action:      "Consider Adding Debt",
			Description: "For stability during market corrections, consider 10-20% allocation to debt funds.",
			Impact:      "Reduced volatility, emergency liquidity",
		})
	case equityPct < ar.ConservativeEquityPct:
		set.SummaryInsights = append(set.SummaryInsights, models.Insight{
			Type:        "allocation",
			Title:       "Conservative Portfolio",
			Description: fmt.Sprintf("Your portfolio has only %.0f%% in equity - may not beat inflation long-term.", equityPct),
		})
		set.Actionables = append(set.Actionables, models.Actionable{
			Priority:    models.SeverityMedium,
			Action:      "Increase Equity Exposure",
			Description: "If your investment horizon is 5+ years, consider increasing equity to 60-70%.",
			Impact:      "Better long-term wealth creation potential",
		})
	default:
		set.SummaryInsights = append(set.SummaryInsights, models.Insight{
			Type:        "allocation",
			Title:       "Balanced Portfolio",
			Description: fmt.Sprintf("Your %.0f%% equity and %.0f%% debt allocation is well-balanced for moderate risk.", equityPct, debtPct),
		})
	}
}

// analyzeAMCConcentration flags a single fund house dominating the portfolio.
func analyzeAMCConcentration(p *models.Portfolio, store *rules.Store, set *models.InsightSet) {
	if len(p.AMCAllocation) == 0 {
		return
	}

	top := p.AMCAllocation[0]
	if top.Percentage > store.AMC.ConcentrationPct {
		set.Risks = append(set.Risks, models.Insight{
			Type:           "amc_concentration",
			Severity:       store.AMC.Severity,
			Title:          "AMC Concentration",
			Description:    fmt.Sprintf("%.0f%% of your portfolio is with %s.", top.Percentage, top.AMC),
			Recommendation: "Consider diversifying across 3-4 AMCs to reduce operational risk.",
		})
	}
}

// analyzePerformance partitions holdings by percentage-point return, emits a
// summary line per non-empty group, and a review opportunity per
// underperformer up to the configured cap, in holdings order.
func analyzePerformance(p *models.Portfolio, store *rules.Store, set *models.InsightSet) {
	pr := store.Performance

	var underperformers, strong []models.Holding
	for _, h := range p.Holdings {
		switch {
		case h.PercentageReturn < pr.UnderperformerPct:
			underperformers = append(underperformers, h)
		case h.PercentageReturn > pr.StrongPerformerPct:
			strong = append(strong, h)
		}
	}

	if len(underperformers) > 0 {
		var totalLoss float64
		for _, h := range underperformers {
			totalLoss += h.AbsoluteReturn
		}
		set.SummaryInsights = append(set.SummaryInsights, models.Insight{
			Type:        "performance",
			Title:       "Underperforming Funds",
			Description: fmt.Sprintf("%d funds are in loss, totaling ₹%.0f unrealized loss.", len(underperformers), abs(totalLoss)),
		})

		for i, h := range underperformers {
			if i >= pr.ReviewCap {
				break
			}
			set.Opportunities = append(set.Opportunities, models.Opportunity{
				Type:       "review_needed",
				Fund:       truncate(h.SchemeName, 50),
				Return:     fmt.Sprintf("%.1f%%", h.PercentageReturn),
				Suggestion: "Review fund's recent performance and consider switching if consistently underperforming benchmark.",
			})
		}
	}

	if len(strong) > 0 {
		var totalGain float64
		for _, h := range strong {
			totalGain += h.AbsoluteReturn
		}
		set.SummaryInsights = append(set.SummaryInsights, models.Insight{
			Type:        "performance",
			Title:       "Strong Performers",
			Description: fmt.Sprintf("%d funds have delivered >%.0f%% returns, totaling ₹%.0f in gains.", len(strong), pr.StrongPerformerPct, totalGain),
		})
	}
}

// detectOverlap counts equity-class holdings matching the large-cap and
// flexi/multi-cap keyword sets; each exceeded set emits one risk, and the
// large-cap set additionally emits a consolidation actionable.
func detectOverlap(p *models.Portfolio, store *rules.Store, set *models.InsightSet) {
	var largeCap, flexiCap int
	for _, h := range p.Holdings {
		if h.AssetClass != models.AssetClassEquity {
			continue
		}
		name := strings.ToLower(h.SchemeName)
		if matchesAny(name, store.Overlap.LargeCapKeywords) {
			largeCap++
		}
		if matchesAny(name, store.Overlap.FlexiCapKeywords) {
			flexiCap++
		}
	}

	if largeCap > store.Overlap.LargeCapMax {
		set.Risks = append(set.Risks, models.Insight{
			Type:           "fund_overlap",
			Severity:       models.SeverityMedium,
			Title:          "Large Cap Fund Overlap",
			Description:    fmt.Sprintf("You have %d large cap funds which likely hold similar stocks.", largeCap),
			Recommendation: "Large cap funds typically hold the same top 50-100 stocks. Consider consolidating into 1-2 funds.",
		})
		set.Actionables = append(set.Actionables, models.Actionable{
			Priority:    models.SeverityMedium,
			Action:      "Consolidate Large Cap Funds",
			Description: "Keep 1 active large cap fund OR switch entirely to a low-cost Nifty 50 index fund.",
			Impact:      "Reduced overlap, lower expense ratio, simpler tracking",
		})
	}

	if flexiCap > store.Overlap.FlexiCapMax {
		set.Risks = append(set.Risks, models.Insight{
			Type:           "fund_overlap",
			Severity:       models.SeverityLow,
			Title:          "Multiple Flexi Cap Funds",
			Description:    fmt.Sprintf("You have %d flexi/multi cap funds with overlapping mandates.", flexiCap),
			Recommendation: "Consider keeping 1-2 best performing flexi cap funds.",
		})
	}
}

// calculateHealthScore derives the composite score from the risks collected
// so far plus return and diversification quality, clamped to [0, 100].
func calculateHealthScore(p *models.Portfolio, store *rules.Store, set *models.InsightSet) models.HealthScore {
	hs := store.HealthScore
	score := 100
	factors := []string{}

	for _, r := range set.Risks {
		switch r.Severity {
		case models.SeverityHigh:
			score -= hs.HighRiskPenalty
		case models.SeverityMedium:
			score -= hs.MediumRiskPenalty
		case models.SeverityLow:
			score -= hs.LowRiskPenalty
		}
	}

	returnPct := p.Summary.ReturnPercentage
	if returnPct > hs.StrongReturnPct {
		score += hs.StrongReturnBonus
		factors = append(factors, "Strong returns")
	} else if returnPct < 0 {
		score -= hs.NegativeReturnPenalty
		factors = append(factors, "Negative returns")
	}

	schemeCount := p.Summary.SchemeCount
	if schemeCount >= hs.DiversificationMin && schemeCount <= hs.DiversificationMax {
		score += hs.DiversificationBonus
		factors = append(factors, "Good diversification")
	}

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	grade, verdict := store.GradeFor(score)

	return models.HealthScore{
		Score:   score,
		Grade:   grade,
		Verdict: verdict,
		Factors: factors,
	}
}

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// truncate shortens s to max runes so multibyte scheme names are never cut
// mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
