// Package storage provides the SQLite-backed persistence layer.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/interfaces"
	"github.com/hmadan24/wealth-advisor/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict indicates a save against a stale portfolio version.
	// The caller re-reads and re-merges against fresh state.
	ErrVersionConflict = errors.New("portfolio version conflict")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	phone      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	last_login TIMESTAMP
);

CREATE TABLE IF NOT EXISTS portfolios (
	user_id    TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Manager implements interfaces.StorageManager on a single SQLite database.
type Manager struct {
	db     *sql.DB
	logger *common.Logger

	users      *userStore
	portfolios *portfolioStore
}

// NewManager opens (creating if necessary) the SQLite database at path.
func NewManager(logger *common.Logger, path string) (*Manager, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent ingestion.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	m := &Manager{db: db, logger: logger}
	m.users = &userStore{db: db}
	m.portfolios = &portfolioStore{db: db, locks: map[string]*sync.Mutex{}}

	logger.Info().Str("path", path).Msg("Storage initialized")
	return m, nil
}

// UserStore returns the user store.
func (m *Manager) UserStore() interfaces.UserStore { return m.users }

// PortfolioStore returns the portfolio store.
func (m *Manager) PortfolioStore() interfaces.PortfolioStore { return m.portfolios }

// Close closes the underlying database.
func (m *Manager) Close() error { return m.db.Close() }

// --- user store ---

type userStore struct {
	db *sql.DB
}

func (s *userStore) GetUser(ctx context.Context, phone string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phone, name, email, created_at, COALESCE(last_login, created_at) FROM users WHERE phone = ?`, phone)

	var u models.User
	if err := row.Scan(&u.Phone, &u.Name, &u.Email, &u.CreatedAt, &u.LastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *userStore) SaveUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (phone, name, email, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET name = excluded.name, email = excluded.email, last_login = excluded.last_login`,
		user.Phone, user.Name, user.Email, user.CreatedAt, user.LastLogin)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *userStore) DeleteUser(ctx context.Context, phone string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// --- portfolio store ---

type portfolioStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// WithUserLock serializes a read-merge-write sequence for one user. Locks are
// per user identity so ingestion for different users never contends.
func (s *portfolioStore) WithUserLock(userID string, fn func() error) error {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (s *portfolioStore) GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM portfolios WHERE user_id = ?`, userID)

	var data []byte
	var version int64
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	var p models.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}
	p.Version = version
	return &p, nil
}

// SavePortfolio stores the full replacement record. Version 0 inserts a new
// row; any other version must match the stored row or the save fails with
// ErrVersionConflict.
func (s *portfolioStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	now := time.Now().UTC()
	prior := p.Version
	p.Version = prior + 1
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}

	if prior == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO portfolios (user_id, data, version, updated_at) VALUES (?, ?, ?, ?)`,
			p.UserID, data, p.Version, now)
		if err != nil {
			p.Version = prior
			return fmt.Errorf("failed to insert portfolio: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE portfolios SET data = ?, version = ?, updated_at = ? WHERE user_id = ? AND version = ?`,
		data, p.Version, now, p.UserID, prior)
	if err != nil {
		p.Version = prior
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		p.Version = prior
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		p.Version = prior
		return ErrVersionConflict
	}
	return nil
}

func (s *portfolioStore) DeletePortfolios(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete portfolios: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
