// Package rules loads the portfolio evaluation rule set. The store is read
// once at startup, validated fail-fast, and shared read-only across
// concurrent evaluations.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Store holds every threshold, template, and severity the insights engine
// evaluates. A missing value is a configuration error, never a silent
// default.
type Store struct {
	Concentration   ConcentrationRules   `toml:"concentration"`
	AssetAllocation AssetAllocationRules `toml:"asset_allocation"`
	AMC             AMCRules             `toml:"amc"`
	Performance     PerformanceRules     `toml:"performance"`
	Overlap         OverlapRules         `toml:"overlap"`
	HealthScore     HealthScoreRules     `toml:"health_score"`
}

// ConcentrationRules governs single-fund and over-diversification checks.
type ConcentrationRules struct {
	HighThresholdPct     float64 `toml:"high_threshold_pct"`     // top holding share → high risk
	ModerateThresholdPct float64 `toml:"moderate_threshold_pct"` // top holding share → medium risk
	OverDiversifiedCount int     `toml:"over_diversified_count"` // scheme count above this is fragmented
	ConsolidationTarget  int     `toml:"consolidation_target"`
}

// AssetAllocationRules governs the equity/debt balance summary.
type AssetAllocationRules struct {
	AggressiveEquityPct   float64 `toml:"aggressive_equity_pct"`
	ConservativeEquityPct float64 `toml:"conservative_equity_pct"`
}

// AMCRules governs fund-house concentration.
type AMCRules struct {
	ConcentrationPct float64 `toml:"concentration_pct"`
	Severity         string  `toml:"severity"` // low or medium
}

// PerformanceRules partitions holdings by percentage-point return.
type PerformanceRules struct {
	UnderperformerPct  float64 `toml:"underperformer_pct"`   // below this → underperformer
	StrongPerformerPct float64 `toml:"strong_performer_pct"` // above this → strong performer
	ReviewCap          int     `toml:"review_cap"`           // max review opportunities emitted
}

// OverlapRules governs same-category fund overlap detection.
type OverlapRules struct {
	LargeCapKeywords []string `toml:"large_cap_keywords"`
	FlexiCapKeywords []string `toml:"flexi_cap_keywords"`
	LargeCapMax      int      `toml:"large_cap_max"` // more than this many large-cap funds → risk
	FlexiCapMax      int      `toml:"flexi_cap_max"`
}

// HealthScoreRules configures the composite 0-100 score.
type HealthScoreRules struct {
	HighRiskPenalty       int          `toml:"high_risk_penalty"`
	MediumRiskPenalty     int          `toml:"medium_risk_penalty"`
	LowRiskPenalty        int          `toml:"low_risk_penalty"`
	StrongReturnPct       float64      `toml:"strong_return_pct"`
	StrongReturnBonus     int          `toml:"strong_return_bonus"`
	NegativeReturnPenalty int          `toml:"negative_return_penalty"`
	DiversificationMin    int          `toml:"diversification_min"`
	DiversificationMax    int          `toml:"diversification_max"`
	DiversificationBonus  int          `toml:"diversification_bonus"`
	Grades                []GradeBand  `toml:"grades"`
}

// GradeBand maps a minimum score to a letter grade and verdict. Bands are
// checked highest breakpoint first.
type GradeBand struct {
	MinScore int    `toml:"min_score"`
	Grade    string `toml:"grade"`
	Verdict  string `toml:"verdict"`
}

// Load reads and validates a rules file. Any missing required key aborts
// with an error listing every absent key.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	store := &Store{}
	if err := toml.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := store.Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	// Grade bands evaluated highest-first regardless of file order.
	sort.Slice(store.HealthScore.Grades, func(i, j int) bool {
		return store.HealthScore.Grades[i].MinScore > store.HealthScore.Grades[j].MinScore
	})

	return store, nil
}

// Validate checks that every required threshold is present. TOML leaves
// absent keys zero-valued, so zero on a required key means missing.
func (s *Store) Validate() error {
	var missing []string

	check := func(key string, zero bool) {
		if zero {
			missing = append(missing, key)
		}
	}

	check("concentration.high_threshold_pct", s.Concentration.HighThresholdPct == 0)
	check("concentration.moderate_threshold_pct", s.Concentration.ModerateThresholdPct == 0)
	check("concentration.over_diversified_count", s.Concentration.OverDiversifiedCount == 0)
	check("concentration.consolidation_target", s.Concentration.ConsolidationTarget == 0)
	check("asset_allocation.aggressive_equity_pct", s.AssetAllocation.AggressiveEquityPct == 0)
	check("asset_allocation.conservative_equity_pct", s.AssetAllocation.ConservativeEquityPct == 0)
	check("amc.concentration_pct", s.AMC.ConcentrationPct == 0)
	check("amc.severity", s.AMC.Severity == "")
	check("performance.strong_performer_pct", s.Performance.StrongPerformerPct == 0)
	check("performance.review_cap", s.Performance.ReviewCap == 0)
	check("overlap.large_cap_keywords", len(s.Overlap.LargeCapKeywords) == 0)
	check("overlap.flexi_cap_keywords", len(s.Overlap.FlexiCapKeywords) == 0)
	check("overlap.large_cap_max", s.Overlap.LargeCapMax == 0)
	check("overlap.flexi_cap_max", s.Overlap.FlexiCapMax == 0)
	check("health_score.high_risk_penalty", s.HealthScore.HighRiskPenalty == 0)
	check("health_score.medium_risk_penalty", s.HealthScore.MediumRiskPenalty == 0)
	check("health_score.low_risk_penalty", s.HealthScore.LowRiskPenalty == 0)
	check("health_score.strong_return_pct", s.HealthScore.StrongReturnPct == 0)
	check("health_score.strong_return_bonus", s.HealthScore.StrongReturnBonus == 0)
	check("health_score.negative_return_penalty", s.HealthScore.NegativeReturnPenalty == 0)
	check("health_score.diversification_min", s.HealthScore.DiversificationMin == 0)
	check("health_score.diversification_max", s.HealthScore.DiversificationMax == 0)
	check("health_score.diversification_bonus", s.HealthScore.DiversificationBonus == 0)
	check("health_score.grades", len(s.HealthScore.Grades) == 0)

	// underperformer_pct is legitimately zero (returns below 0 points), so it
	// is exempt from the zero-means-missing check.

	if len(missing) > 0 {
		return fmt.Errorf("missing required rules keys: %s", strings.Join(missing, ", "))
	}

	if s.AMC.Severity != "low" && s.AMC.Severity != "medium" {
		return fmt.Errorf("amc.severity must be \"low\" or \"medium\", got %q", s.AMC.Severity)
	}

	return nil
}

// GradeFor maps a clamped score to its letter grade and verdict.
func (s *Store) GradeFor(score int) (string, string) {
	for _, band := range s.HealthScore.Grades {
		if score >= band.MinScore {
			return band.Grade, band.Verdict
		}
	}
	// Below every breakpoint: the lowest band applies.
	last := s.HealthScore.Grades[len(s.HealthScore.Grades)-1]
	return last.Grade, last.Verdict
}
