package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/storefront/internal/domain"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// InMemoryUserStore keeps identities in memory for tests and local runs
// without POSTGRES_DSN. It honours the same contract as the Postgres store.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewInMemoryUserStore constructs an empty store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*domain.User)}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email && existing.UserType == user.UserType {
			return apperrors.ErrDuplicateUser
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemoryUserStore) UpdateProfile(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = user.Name
	stored.Profile = user.Profile
	stored.UpdatedAt = time.Now().UTC()
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *InMemoryUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return cloneUser(user), nil
	}
	return nil, pgx.ErrNoRows
}

func (s *InMemoryUserStore) GetByEmail(_ context.Context, email string, userType domain.UserType) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email && user.UserType == userType {
			return cloneUser(user), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *InMemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *InMemoryUserStore) SetRefreshHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshTokenHash = &hash
	return nil
}

func (s *InMemoryUserStore) SwapRefreshHash(_ context.Context, userID, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || user.RefreshTokenHash == nil || *user.RefreshTokenHash != expected {
		return false, nil
	}
	user.RefreshTokenHash = &next
	return true, nil
}

func (s *InMemoryUserStore) ClearRefreshHash(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[userID]; ok {
		user.RefreshTokenHash = nil
	}
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.RefreshTokenHash != nil {
		hash := *u.RefreshTokenHash
		cp.RefreshTokenHash = &hash
	}
	return &cp
}

// InMemoryProductStore keeps catalog entries in memory.
type InMemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewInMemoryProductStore constructs an empty store.
func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{products: make(map[string]domain.Product)}
}

func (s *InMemoryProductStore) Create(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	product.ID = uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = *product
	return nil
}

func (s *InMemoryProductStore) Update(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.products[product.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	product.UserID = stored.UserID
	product.CreatedAt = stored.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = *product
	return nil
}

func (s *InMemoryProductStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &product, nil
}

func (s *InMemoryProductStore) ListByUser(_ context.Context, userID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]domain.Product, 0)
	for _, product := range s.products {
		if product.UserID == userID {
			products = append(products, product)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (s *InMemoryProductStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.products, id)
	return nil
}

func (s *InMemoryProductStore) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, product := range s.products {
		if product.UserID == userID {
			delete(s.products, id)
			deleted++
		}
	}
	return deleted, nil
}
