package interfaces

import (
	"context"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

// PortfolioService orchestrates ingestion, manual entries, and reads over the
// master portfolio record.
type PortfolioService interface {
	// IngestSegment merges a parsed segment into the user's master portfolio,
	// regenerates insights, and persists the replacement record.
	IngestSegment(ctx context.Context, userID string, segment models.Segment, source, filename string) (*models.Portfolio, error)

	// EvaluateSegment generates insights for a standalone segment without
	// touching any stored portfolio (unauthenticated preview).
	EvaluateSegment(segment models.Segment) (*models.Portfolio, error)

	AddManualHolding(ctx context.Context, userID string, holding models.Holding) (*models.Portfolio, error)
	DeleteManualHolding(ctx context.Context, userID, schemeName string) (*models.Portfolio, int, error)

	GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	ListSegments(ctx context.Context, userID string) ([]models.SegmentListing, error)
	DeleteSegment(ctx context.Context, userID, source string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, userID string) (int, error)

	// AllocationChart renders the asset-allocation donut as PNG bytes.
	AllocationChart(ctx context.Context, userID string) ([]byte, error)
}

// AdvisorClient generates an optional AI narrative over a portfolio.
type AdvisorClient interface {
	GenerateNarrative(ctx context.Context, prompt string) (string, error)
	Close() error
}
