package portfolio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

// RenderAllocationChart renders the asset-class allocation as a donut chart.
// Returns raw PNG bytes.
func RenderAllocationChart(allocation []models.AssetAllocation) ([]byte, error) {
	if len(allocation) == 0 {
		return nil, fmt.Errorf("no allocation data to chart")
	}

	values := make([]chart.Value, 0, len(allocation))
	for _, a := range allocation {
		if a.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", a.AssetClass, a.Percentage),
			Value: a.Value,
		})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no allocation data to chart")
	}

	graph := chart.DonutChart{
		Title:  "Asset Allocation",
		Width:  600,
		Height: 450,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}
	return buf.Bytes(), nil
}

// AllocationChart renders the user's current allocation donut.
func (s *Service) AllocationChart(ctx context.Context, userID string) ([]byte, error) {
	p, err := s.GetPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	return RenderAllocationChart(p.AssetAllocation)
}
