// Package models defines data structures for the wealth advisor
package models

import "time"

// AssetClass labels a holding with its broad asset category.
type AssetClass string

const (
	AssetClassEquity   AssetClass = "equity"
	AssetClassDebt     AssetClass = "debt"
	AssetClassHybrid   AssetClass = "hybrid"
	AssetClassGold     AssetClass = "gold"
	AssetClassUSEquity AssetClass = "us_equity"
	AssetClassOther    AssetClass = "other"
)

// DisplayName returns the human-readable asset class label.
func (a AssetClass) DisplayName() string {
	switch a {
	case AssetClassEquity:
		return "Equity"
	case AssetClassDebt:
		return "Debt"
	case AssetClassHybrid:
		return "Hybrid"
	case AssetClassGold:
		return "Gold"
	case AssetClassUSEquity:
		return "US Equity"
	default:
		return "Other"
	}
}

// Source tags identify which segment produced a holding. At most one active
// segment per tag exists inside a master portfolio.
const (
	SourceCAS      = "cas"
	SourceUSEquity = "us_equity"
	SourceManual   = "manual"
)

// Holding represents one line-item position.
type Holding struct {
	SchemeName       string     `json:"scheme_name"`
	ISIN             string     `json:"isin,omitempty"`
	AssetClass       AssetClass `json:"asset_class"`
	AMC              string     `json:"amc"`
	Units            float64    `json:"units"`
	NAV              float64    `json:"nav"`
	CurrentValue     float64    `json:"current_value"`
	InvestedAmount   float64    `json:"invested_amount"` // 0 when the source lacks cost basis
	AbsoluteReturn   float64    `json:"absolute_return"`
	PercentageReturn float64    `json:"percentage_return"`
	Folio            string     `json:"folio,omitempty"`
	Source           string     `json:"source"`
	ValuationDate    string     `json:"valuation_date,omitempty"`
}

// Investor holds the account-holder metadata extracted from a statement.
type Investor struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PortfolioSummary is derived in full from the holdings list and never
// mutated independently of a recomputation.
type PortfolioSummary struct {
	TotalValue       float64 `json:"total_value"`
	TotalInvested    float64 `json:"total_invested"`
	TotalReturn      float64 `json:"total_return"`
	ReturnPercentage float64 `json:"return_percentage"`
	SchemeCount      int     `json:"scheme_count"`
	FolioCount       int     `json:"folio_count"`
}

// AssetAllocation is one row of the by-asset-class value breakdown.
type AssetAllocation struct {
	AssetClass  string  `json:"asset_class"`
	Value       float64 `json:"value"`
	Percentage  float64 `json:"percentage"`
	SchemeCount int     `json:"scheme_count"`
}

// AMCAllocation is one row of the by-fund-house value breakdown.
type AMCAllocation struct {
	AMC         string  `json:"amc"`
	Value       float64 `json:"value"`
	Percentage  float64 `json:"percentage"`
	SchemeCount int     `json:"scheme_count"`
}

// Segment is the normalized output of one parsed document or manual-entry
// batch. Holdings arrive without a source tag; the merger stamps them.
type Segment struct {
	Investor Investor         `json:"investor"`
	Summary  PortfolioSummary `json:"summary"`
	Holdings []Holding        `json:"holdings"`
}

// SegmentMeta records the audit trail for one merged segment.
type SegmentMeta struct {
	Filename      string           `json:"filename"`
	UploadedAt    time.Time        `json:"uploaded_at"`
	HoldingsCount int              `json:"holdings_count"`
	TotalValue    float64          `json:"total_value"`
	SourceSummary PortfolioSummary `json:"source_summary"`
}

// Portfolio is the master per-user record combining all current segments.
// It is replaced in whole on every ingestion, never partially patched.
type Portfolio struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Investor        Investor               `json:"investor"`
	Summary         PortfolioSummary       `json:"summary"`
	Holdings        []Holding              `json:"holdings"`
	AssetAllocation []AssetAllocation      `json:"asset_allocation"`
	AMCAllocation   []AMCAllocation        `json:"amc_allocation"`
	Segments        map[string]SegmentMeta `json:"segments"`
	Insights        *InsightSet            `json:"insights,omitempty"`
	Version         int64                  `json:"version"` // optimistic concurrency token
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewPortfolio returns an empty master portfolio for a user.
func NewPortfolio(id, userID string) *Portfolio {
	now := time.Now().UTC()
	return &Portfolio{
		ID:        id,
		UserID:    userID,
		Holdings:  []Holding{},
		Segments:  map[string]SegmentMeta{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SegmentListing is the presentation view derived from the segment map.
type SegmentListing struct {
	Source        string    `json:"source"`
	Filename      string    `json:"filename"`
	UploadedAt    time.Time `json:"uploaded_at"`
	HoldingsCount int       `json:"holdings_count"`
	TotalValue    float64   `json:"total_value"`
}
