// Package interfaces defines service contracts for the wealth advisor
package interfaces

import (
	"context"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

// UserStore manages registered accounts.
type UserStore interface {
	GetUser(ctx context.Context, phone string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, phone string) error
}

// PortfolioStore persists master portfolio records.
//
// The ingestion path is read-merge-write over a shared record, so the store
// serializes those sequences per user: WithUserLock holds a per-user lock for
// the duration of fn, and SavePortfolio enforces the optimistic version
// counter: a save against a stale version fails and the caller re-reads.
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	DeletePortfolios(ctx context.Context, userID string) (int, error)
	WithUserLock(userID string, fn func() error) error
}

// StorageManager coordinates the storage backends.
type StorageManager interface {
	UserStore() UserStore
	PortfolioStore() PortfolioStore
	Close() error
}
