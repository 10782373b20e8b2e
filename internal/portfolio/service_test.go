package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/interfaces"
	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/rules"
	"github.com/hmadan24/wealth-advisor/internal/storage"
)

// memStorage is an in-memory StorageManager with the same versioning
// semantics as the SQLite store.
type memStorage struct {
	mu         sync.Mutex
	users      map[string]models.User
	portfolios map[string]*models.Portfolio

	// failSaves injects version conflicts for retry-path tests.
	failSaves int
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:      map[string]models.User{},
		portfolios: map[string]*models.Portfolio{},
	}
}

func (m *memStorage) UserStore() interfaces.UserStore           { return m }
func (m *memStorage) PortfolioStore() interfaces.PortfolioStore { return m }
func (m *memStorage) Close() error                              { return nil }

func (m *memStorage) GetUser(ctx context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *memStorage) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Phone] = *user
	return nil
}

func (m *memStorage) DeleteUser(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, phone)
	return nil
}

func (m *memStorage) GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStorage) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSaves > 0 {
		m.failSaves--
		return storage.ErrVersionConflict
	}

	current, exists := m.portfolios[p.UserID]
	if exists && current.Version != p.Version {
		return storage.ErrVersionConflict
	}
	p.Version++
	cp := *p
	m.portfolios[p.UserID] = &cp
	return nil
}

func (m *memStorage) DeletePortfolios(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[userID]; !ok {
		return 0, nil
	}
	delete(m.portfolios, userID)
	return 1, nil
}

func (m *memStorage) WithUserLock(userID string, fn func() error) error {
	return fn()
}

func testRules() *rules.Store {
	return &rules.Store{
		Concentration: rules.ConcentrationRules{
			HighThresholdPct:     40,
			ModerateThresholdPct: 25,
			OverDiversifiedCount: 15,
			ConsolidationTarget:  10,
		},
		AssetAllocation: rules.AssetAllocationRules{
			AggressiveEquityPct:   80,
			ConservativeEquityPct: 40,
		},
		AMC: rules.AMCRules{ConcentrationPct: 60, Severity: "low"},
		Performance: rules.PerformanceRules{
			UnderperformerPct:  0,
			StrongPerformerPct: 15,
			ReviewCap:          3,
		},
		Overlap: rules.OverlapRules{
			LargeCapKeywords: []string{"large cap", "largecap", "bluechip"},
			FlexiCapKeywords: []string{"flexi cap", "flexicap", "multi cap"},
			LargeCapMax:      2,
			FlexiCapMax:      2,
		},
		HealthScore: rules.HealthScoreRules{
			HighRiskPenalty:       15,
			MediumRiskPenalty:     8,
			LowRiskPenalty:        3,
			StrongReturnPct:       12,
			StrongReturnBonus:     5,
			NegativeReturnPenalty: 10,
			DiversificationMin:    5,
			DiversificationMax:    12,
			DiversificationBonus:  5,
			Grades: []rules.GradeBand{
				{MinScore: 80, Grade: "A", Verdict: "Excellent"},
				{MinScore: 65, Grade: "B", Verdict: "Good"},
				{MinScore: 50, Grade: "C", Verdict: "Average"},
				{MinScore: 0, Grade: "D", Verdict: "Needs Attention"},
			},
		},
	}
}

func newTestService(store interfaces.StorageManager) *Service {
	return NewService(store, testRules(), common.NewSilentLogger())
}

func TestServiceIngestSegment(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	p, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf")
	if err != nil {
		t.Fatalf("IngestSegment: %v", err)
	}

	if p.Version != 1 {
		t.Errorf("Version = %d, want 1", p.Version)
	}
	if p.Insights == nil {
		t.Fatal("insights not generated on ingestion")
	}
	if p.Summary.TotalValue != 100000 {
		t.Errorf("TotalValue = %.2f, want 100000", p.Summary.TotalValue)
	}

	// Second ingestion of the same source bumps the version, not the totals.
	p2, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf")
	if err != nil {
		t.Fatalf("second IngestSegment: %v", err)
	}
	if p2.Version != 2 {
		t.Errorf("Version = %d, want 2", p2.Version)
	}
	if p2.Summary != p.Summary {
		t.Errorf("re-ingestion changed summary: %+v vs %+v", p2.Summary, p.Summary)
	}
}

func TestServiceIngestRetriesOnConflict(t *testing.T) {
	store := newMemStorage()
	store.failSaves = 2
	svc := newTestService(store)

	p, err := svc.IngestSegment(context.Background(), "u1", casSegment(), models.SourceCAS, "cas.pdf")
	if err != nil {
		t.Fatalf("IngestSegment with conflicts: %v", err)
	}
	if p.Summary.TotalValue != 100000 {
		t.Errorf("TotalValue = %.2f, want 100000", p.Summary.TotalValue)
	}
}

func TestServiceIngestGivesUpAfterRetries(t *testing.T) {
	store := newMemStorage()
	store.failSaves = saveRetries
	svc := newTestService(store)

	_, err := svc.IngestSegment(context.Background(), "u1", casSegment(), models.SourceCAS, "cas.pdf")
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("got %v, want version conflict", err)
	}
}

func TestServiceManualHoldingLifecycle(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := svc.AddManualHolding(ctx, "u1", models.Holding{
		SchemeName:     "Parag Parikh Flexi Cap Fund",
		CurrentValue:   50000,
		InvestedAmount: 40000,
	})
	if err != nil {
		t.Fatalf("AddManualHolding: %v", err)
	}

	manual := ManualHoldings(*p)
	if len(manual) != 1 {
		t.Fatalf("got %d manual holdings, want 1", len(manual))
	}
	// Classification and derived returns are filled in.
	if manual[0].AssetClass != models.AssetClassEquity {
		t.Errorf("AssetClass = %s, want equity", manual[0].AssetClass)
	}
	if manual[0].AMC != "Manual" {
		t.Errorf("AMC = %q, want Manual", manual[0].AMC)
	}
	if manual[0].PercentageReturn != 25 {
		t.Errorf("PercentageReturn = %.2f, want 25", manual[0].PercentageReturn)
	}
	if p.Summary.TotalValue != 150000 {
		t.Errorf("TotalValue = %.2f, want 150000", p.Summary.TotalValue)
	}

	// Deleting the last manual holding removes the manual segment entirely
	// and leaves the CAS aggregates untouched.
	p, deleted, err := svc.DeleteManualHolding(ctx, "u1", "Parag Parikh Flexi Cap Fund")
	if err != nil {
		t.Fatalf("DeleteManualHolding: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, ok := p.Segments[models.SourceManual]; ok {
		t.Error("manual segment meta still present after last deletion")
	}
	if p.Summary.TotalValue != 100000 {
		t.Errorf("TotalValue = %.2f, want 100000 after deletion", p.Summary.TotalValue)
	}
}

func TestServiceDeleteManualHoldingMissing(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, deleted, err := svc.DeleteManualHolding(ctx, "u1", "No Such Fund")
	if err != nil {
		t.Fatalf("DeleteManualHolding: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestServiceGetPortfolioNotFound(t *testing.T) {
	svc := newTestService(newMemStorage())

	_, err := svc.GetPortfolio(context.Background(), "nobody")
	if !errors.Is(err, ErrNoPortfolio) {
		t.Fatalf("got %v, want ErrNoPortfolio", err)
	}
}

func TestServiceListSegments(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	// No portfolio yet: empty listing, not an error.
	listings, err := svc.ListSegments(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("got %d listings, want 0", len(listings))
	}

	if _, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.IngestSegment(ctx, "u1", usSegment(), models.SourceUSEquity, "vested.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	listings, err = svc.ListSegments(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
}

func TestServiceDeleteSegment(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.IngestSegment(ctx, "u1", usSegment(), models.SourceUSEquity, "vested.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := svc.DeleteSegment(ctx, "u1", models.SourceUSEquity)
	if err != nil {
		t.Fatalf("DeleteSegment: %v", err)
	}
	if len(p.Segments) != 1 {
		t.Errorf("got %d segments, want 1", len(p.Segments))
	}
	if p.Summary.TotalValue != 100000 {
		t.Errorf("TotalValue = %.2f, want 100000", p.Summary.TotalValue)
	}
}

func TestServiceEvaluateSegmentDoesNotPersist(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)

	preview, err := svc.EvaluateSegment(casSegment())
	if err != nil {
		t.Fatalf("EvaluateSegment: %v", err)
	}
	if preview.Insights == nil {
		t.Fatal("preview has no insights")
	}
	if preview.Summary.TotalValue != 100000 {
		t.Errorf("TotalValue = %.2f, want 100000", preview.Summary.TotalValue)
	}
	if len(store.portfolios) != 0 {
		t.Errorf("preview persisted %d portfolios, want 0", len(store.portfolios))
	}
}

func TestServiceDeletePortfolio(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.IngestSegment(ctx, "u1", casSegment(), models.SourceCAS, "cas.pdf"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := svc.DeletePortfolio(ctx, "u1")
	if err != nil {
		t.Fatalf("DeletePortfolio: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := svc.GetPortfolio(ctx, "u1"); !errors.Is(err, ErrNoPortfolio) {
		t.Fatalf("got %v, want ErrNoPortfolio after deletion", err)
	}
}
