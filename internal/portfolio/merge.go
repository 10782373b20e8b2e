package portfolio

import (
	"time"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

// PrimaryIdentitySource is the segment whose investor metadata always wins.
const PrimaryIdentitySource = models.SourceCAS

// MergeSegment incorporates a normalized segment into a master portfolio
// under the given source tag. The input portfolio is never mutated; a new
// value is returned.
//
// Every holding previously belonging to the tag is cleared before the
// segment's holdings are re-added, so merging the same segment is idempotent
// and independent of the order other sources were merged in.
func MergeSegment(master models.Portfolio, segment models.Segment, source, filename string) models.Portfolio {
	result := clonePortfolio(master)

	result.Segments[source] = models.SegmentMeta{
		Filename:      filename,
		UploadedAt:    time.Now().UTC(),
		HoldingsCount: len(segment.Holdings),
		TotalValue:    segment.Summary.TotalValue,
		SourceSummary: segment.Summary,
	}

	// Adopt investor metadata from the identity source, or when the master
	// has none yet.
	if (source == PrimaryIdentitySource || result.Investor.Name == "") && segment.Investor.Name != "" {
		result.Investor = segment.Investor
	}

	holdings := make([]models.Holding, 0, len(result.Holdings)+len(segment.Holdings))
	for _, h := range result.Holdings {
		if h.Source != source {
			holdings = append(holdings, h)
		}
	}
	for _, h := range segment.Holdings {
		h.Source = source
		holdings = append(holdings, h)
	}
	result.Holdings = holdings

	recalculate(&result)
	return result
}

// RemoveSegment drops a segment's metadata and holdings by source tag and
// recomputes the derived fields. The input portfolio is never mutated.
func RemoveSegment(master models.Portfolio, source string) models.Portfolio {
	result := clonePortfolio(master)

	delete(result.Segments, source)

	holdings := make([]models.Holding, 0, len(result.Holdings))
	for _, h := range result.Holdings {
		if h.Source != source {
			holdings = append(holdings, h)
		}
	}
	result.Holdings = holdings

	recalculate(&result)
	return result
}

// ManualHoldings returns the current manual-entry holdings of a portfolio.
func ManualHoldings(master models.Portfolio) []models.Holding {
	var manual []models.Holding
	for _, h := range master.Holdings {
		if h.Source == models.SourceManual {
			manual = append(manual, h)
		}
	}
	return manual
}

// ManualSegment wraps a manual holdings list in a Segment so that manual
// add/edit/delete flows go through the same clear-and-replace merge as
// document uploads, never an in-place field mutation.
func ManualSegment(holdings []models.Holding) models.Segment {
	summary, _, _ := Recompute(holdings)
	return models.Segment{
		Summary:  summary,
		Holdings: holdings,
	}
}

// recalculate replaces the derived fields from the current holdings list.
func recalculate(p *models.Portfolio) {
	p.Summary, p.AssetAllocation, p.AMCAllocation = Recompute(p.Holdings)
	p.UpdatedAt = time.Now().UTC()
}

// clonePortfolio copies the portfolio deeply enough that mutating the copy's
// holdings or segment map cannot be observed through the original.
func clonePortfolio(p models.Portfolio) models.Portfolio {
	result := p

	result.Holdings = make([]models.Holding, len(p.Holdings))
	copy(result.Holdings, p.Holdings)

	result.Segments = make(map[string]models.SegmentMeta, len(p.Segments)+1)
	for k, v := range p.Segments {
		result.Segments[k] = v
	}

	result.AssetAllocation = append([]models.AssetAllocation(nil), p.AssetAllocation...)
	result.AMCAllocation = append([]models.AMCAllocation(nil), p.AMCAllocation...)

	return result
}
