package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/insights"
	"github.com/hmadan24/wealth-advisor/internal/interfaces"
	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/rules"
	"github.com/hmadan24/wealth-advisor/internal/storage"
)

// saveRetries bounds re-merges after a version conflict. With the per-user
// lock held conflicts should not occur; the retry covers external writers.
const saveRetries = 3

// ErrNoPortfolio indicates the user has no stored portfolio yet.
var ErrNoPortfolio = errors.New("no portfolio found")

// Service implements interfaces.PortfolioService.
type Service struct {
	storage interfaces.StorageManager
	rules   *rules.Store
	logger  *common.Logger
}

// NewService creates a new portfolio service.
func NewService(storageManager interfaces.StorageManager, ruleStore *rules.Store, logger *common.Logger) *Service {
	return &Service{
		storage: storageManager,
		rules:   ruleStore,
		logger:  logger,
	}
}

// IngestSegment merges a parsed segment into the user's master portfolio,
// regenerates insights, and stores the full replacement record. The whole
// read-merge-write sequence runs under the user's lock; a stale-version save
// re-reads and re-merges against fresh state.
func (s *Service) IngestSegment(ctx context.Context, userID string, segment models.Segment, source, filename string) (*models.Portfolio, error) {
	s.logger.Info().
		Str("user", userID).
		Str("source", source).
		Int("holdings", len(segment.Holdings)).
		Float64("value", segment.Summary.TotalValue).
		Msg("Merging segment")

	return s.replace(ctx, userID, func(master models.Portfolio) models.Portfolio {
		return MergeSegment(master, segment, source, filename)
	})
}

// EvaluateSegment generates insights for a standalone segment without
// touching stored state (unauthenticated preview of an uploaded statement).
func (s *Service) EvaluateSegment(segment models.Segment) (*models.Portfolio, error) {
	preview := models.NewPortfolio("", "")
	merged := MergeSegment(*preview, segment, models.SourceCAS, "")
	merged.Insights = insights.Evaluate(&merged, s.rules)
	return &merged, nil
}

// AddManualHolding appends one manual entry via the clear-and-replace merge
// of the full manual holdings set.
func (s *Service) AddManualHolding(ctx context.Context, userID string, holding models.Holding) (*models.Portfolio, error) {
	if holding.AssetClass == "" {
		holding.AssetClass = Classify(holding.SchemeName, "")
	}
	if holding.AMC == "" {
		holding.AMC = "Manual"
	}
	if holding.InvestedAmount > 0 {
		holding.AbsoluteReturn = holding.CurrentValue - holding.InvestedAmount
		holding.PercentageReturn = holding.AbsoluteReturn / holding.InvestedAmount * 100
	}

	return s.replace(ctx, userID, func(master models.Portfolio) models.Portfolio {
		manual := append(ManualHoldings(master), holding)
		return MergeSegment(master, ManualSegment(manual), models.SourceManual, "manual-entry")
	})
}

// DeleteManualHolding removes manual entries matching the scheme name, again
// as a merge of the remaining manual holdings. Returns the deleted count.
func (s *Service) DeleteManualHolding(ctx context.Context, userID, schemeName string) (*models.Portfolio, int, error) {
	deleted := 0

	result, err := s.replace(ctx, userID, func(master models.Portfolio) models.Portfolio {
		var remaining []models.Holding
		deleted = 0
		for _, h := range ManualHoldings(master) {
			if h.SchemeName == schemeName {
				deleted++
				continue
			}
			remaining = append(remaining, h)
		}
		if len(remaining) == 0 {
			return RemoveSegment(master, models.SourceManual)
		}
		return MergeSegment(master, ManualSegment(remaining), models.SourceManual, "manual-entry")
	})
	if err != nil {
		return nil, 0, err
	}
	return result, deleted, nil
}

// GetPortfolio returns the user's master portfolio.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	p, err := s.storage.PortfolioStore().GetPortfolio(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoPortfolio
	}
	return p, err
}

// ListSegments returns the segment-listing view of the master portfolio.
func (s *Service) ListSegments(ctx context.Context, userID string) ([]models.SegmentListing, error) {
	p, err := s.GetPortfolio(ctx, userID)
	if errors.Is(err, ErrNoPortfolio) {
		return []models.SegmentListing{}, nil
	}
	if err != nil {
		return nil, err
	}

	listings := make([]models.SegmentListing, 0, len(p.Segments))
	for source, meta := range p.Segments {
		listings = append(listings, models.SegmentListing{
			Source:        source,
			Filename:      meta.Filename,
			UploadedAt:    meta.UploadedAt,
			HoldingsCount: meta.HoldingsCount,
			TotalValue:    meta.TotalValue,
		})
	}
	return listings, nil
}

// DeleteSegment removes one segment by source tag and stores the result.
func (s *Service) DeleteSegment(ctx context.Context, userID, source string) (*models.Portfolio, error) {
	return s.replace(ctx, userID, func(master models.Portfolio) models.Portfolio {
		return RemoveSegment(master, source)
	})
}

// DeletePortfolio removes the user's stored portfolio entirely.
func (s *Service) DeletePortfolio(ctx context.Context, userID string) (int, error) {
	deleted, err := s.storage.PortfolioStore().DeletePortfolios(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("user", userID).Int("deleted", deleted).Msg("Deleted portfolio")
	return deleted, nil
}

// replace runs the serialized read-merge-write sequence: read current master
// (or create one), apply the transform, regenerate insights, save with the
// version check, and retry from a fresh read on conflict.
func (s *Service) replace(ctx context.Context, userID string, transform func(models.Portfolio) models.Portfolio) (*models.Portfolio, error) {
	store := s.storage.PortfolioStore()
	var result *models.Portfolio

	err := store.WithUserLock(userID, func() error {
		for attempt := 0; attempt < saveRetries; attempt++ {
			master, err := store.GetPortfolio(ctx, userID)
			if errors.Is(err, storage.ErrNotFound) {
				master = models.NewPortfolio(uuid.New().String(), userID)
			} else if err != nil {
				return err
			}

			updated := transform(*master)
			updated.Insights = insights.Evaluate(&updated, s.rules)

			if err := store.SavePortfolio(ctx, &updated); err != nil {
				if errors.Is(err, storage.ErrVersionConflict) {
					s.logger.Warn().Str("user", userID).Int("attempt", attempt+1).Msg("Version conflict, re-merging")
					continue
				}
				return err
			}
			result = &updated
			return nil
		}
		return fmt.Errorf("failed to save portfolio after %d attempts: %w", saveRetries, storage.ErrVersionConflict)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user", userID).
		Int("holdings", len(result.Holdings)).
		Float64("total_value", result.Summary.TotalValue).
		Msg("Portfolio updated")

	return result, nil
}
