package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(common.NewSilentLogger(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestUserRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	users := m.UserStore()

	_, err := users.GetUser(ctx, "+919876543210")
	require.ErrorIs(t, err, ErrNotFound)

	u := &models.User{
		Phone:     "+919876543210",
		Name:      "Asha Rao",
		Email:     "asha@example.com",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, users.SaveUser(ctx, u))

	got, err := users.GetUser(ctx, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, u.Phone, got.Phone)
	assert.Equal(t, u.Name, got.Name)
	assert.Equal(t, u.Email, got.Email)

	// Upsert updates in place.
	u.Name = "Asha R"
	u.LastLogin = time.Now().UTC()
	require.NoError(t, users.SaveUser(ctx, u))

	got, err = users.GetUser(ctx, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "Asha R", got.Name)

	require.NoError(t, users.DeleteUser(ctx, "+919876543210"))
	_, err = users.GetUser(ctx, "+919876543210")
	require.ErrorIs(t, err, ErrNotFound)
}

func testPortfolio(userID string) *models.Portfolio {
	p := models.NewPortfolio("p1", userID)
	p.Holdings = []models.Holding{
		{SchemeName: "HDFC Large Cap Fund", AssetClass: models.AssetClassEquity, AMC: "HDFC", CurrentValue: 40000, InvestedAmount: 30000, Source: models.SourceCAS},
	}
	p.Summary = models.PortfolioSummary{TotalValue: 40000, TotalInvested: 30000, SchemeCount: 1}
	return p
}

func TestPortfolioRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.PortfolioStore()

	_, err := store.GetPortfolio(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	p := testPortfolio("u1")
	require.NoError(t, store.SavePortfolio(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	got, err := store.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "u1", got.UserID)
	require.Len(t, got.Holdings, 1)
	assert.Equal(t, "HDFC Large Cap Fund", got.Holdings[0].SchemeName)
	assert.Equal(t, 40000.0, got.Summary.TotalValue)
}

func TestPortfolioVersionIncrements(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.PortfolioStore()

	p := testPortfolio("u1")
	require.NoError(t, store.SavePortfolio(ctx, p))
	require.NoError(t, store.SavePortfolio(ctx, p))
	assert.Equal(t, int64(2), p.Version)

	got, err := store.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestPortfolioVersionConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.PortfolioStore()

	p := testPortfolio("u1")
	require.NoError(t, store.SavePortfolio(ctx, p))

	// Two readers at version 1; the second save is stale.
	a, err := store.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	b, err := store.GetPortfolio(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, store.SavePortfolio(ctx, a))

	err = store.SavePortfolio(ctx, b)
	require.ErrorIs(t, err, ErrVersionConflict)
	// A failed save leaves the caller's version untouched for the retry read.
	assert.Equal(t, int64(1), b.Version)

	got, err := store.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestDeletePortfolios(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.PortfolioStore()

	deleted, err := store.DeletePortfolios(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	require.NoError(t, store.SavePortfolio(ctx, testPortfolio("u1")))

	deleted, err = store.DeletePortfolios(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetPortfolio(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWithUserLockSerializes(t *testing.T) {
	m := newTestManager(t)
	store := m.PortfolioStore()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithUserLock("u1", func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "same-user critical sections overlapped")
}

func TestWithUserLockPropagatesError(t *testing.T) {
	m := newTestManager(t)
	store := m.PortfolioStore()

	want := errors.New("boom")
	err := store.WithUserLock("u1", func() error { return want })
	require.ErrorIs(t, err, want)
}
