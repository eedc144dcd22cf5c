package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/spec-kit/storefront/internal/domain"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
	ctx   context.Context
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = NewInMemoryUserStore()
	s.ctx = context.Background()
}

func (s *InMemoryUserStoreSuite) newUser(email string, userType domain.UserType) *domain.User {
	user := &domain.User{Name: "A", Email: email, PasswordHash: "h", UserType: userType}
	require.NoError(s.T(), s.store.Create(s.ctx, user))
	return user
}

func (s *InMemoryUserStoreSuite) TestCreateAssignsIDAndRejectsDuplicates() {
	user := s.newUser("a@x.com", domain.UserTypeUser)
	assert.NotEmpty(s.T(), user.ID)
	assert.False(s.T(), user.CreatedAt.IsZero())

	err := s.store.Create(s.ctx, &domain.User{Email: "a@x.com", UserType: domain.UserTypeUser})
	assert.ErrorIs(s.T(), err, apperrors.ErrDuplicateUser)

	err = s.store.Create(s.ctx, &domain.User{Email: "a@x.com", UserType: domain.UserTypeVendor})
	assert.NoError(s.T(), err)
}

func (s *InMemoryUserStoreSuite) TestGetByEmailScopesByUserType() {
	user := s.newUser("a@x.com", domain.UserTypeUser)

	found, err := s.store.GetByEmail(s.ctx, "a@x.com", domain.UserTypeUser)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, found.ID)

	_, err = s.store.GetByEmail(s.ctx, "a@x.com", domain.UserTypeAdmin)
	assert.ErrorIs(s.T(), err, pgx.ErrNoRows)
}

func (s *InMemoryUserStoreSuite) TestReturnedUsersAreCopies() {
	user := s.newUser("a@x.com", domain.UserTypeUser)
	require.NoError(s.T(), s.store.SetRefreshHash(s.ctx, user.ID, "h1"))

	found, err := s.store.GetByID(s.ctx, user.ID)
	require.NoError(s.T(), err)
	*found.RefreshTokenHash = "tampered"
	found.Name = "tampered"

	again, err := s.store.GetByID(s.ctx, user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "h1", *again.RefreshTokenHash)
	assert.Equal(s.T(), "A", again.Name)
}

func (s *InMemoryUserStoreSuite) TestSwapRefreshHash() {
	user := s.newUser("a@x.com", domain.UserTypeUser)

	swapped, err := s.store.SwapRefreshHash(s.ctx, user.ID, "h0", "h1")
	require.NoError(s.T(), err)
	assert.False(s.T(), swapped, "no stored hash yet")

	require.NoError(s.T(), s.store.SetRefreshHash(s.ctx, user.ID, "h1"))

	swapped, err = s.store.SwapRefreshHash(s.ctx, user.ID, "h1", "h2")
	require.NoError(s.T(), err)
	assert.True(s.T(), swapped)

	swapped, err = s.store.SwapRefreshHash(s.ctx, user.ID, "h1", "h3")
	require.NoError(s.T(), err)
	assert.False(s.T(), swapped, "stale expected hash")

	found, err := s.store.GetByID(s.ctx, user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "h2", *found.RefreshTokenHash)
}

func (s *InMemoryUserStoreSuite) TestSwapRefreshHashConcurrentSingleWinner() {
	user := s.newUser("a@x.com", domain.UserTypeUser)
	require.NoError(s.T(), s.store.SetRefreshHash(s.ctx, user.ID, "stale"))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			swapped, err := s.store.SwapRefreshHash(s.ctx, user.ID, "stale", "fresh")
			if err == nil && swapped {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(s.T(), int32(1), wins)
}

func (s *InMemoryUserStoreSuite) TestClearRefreshHashIsIdempotent() {
	user := s.newUser("a@x.com", domain.UserTypeUser)
	require.NoError(s.T(), s.store.SetRefreshHash(s.ctx, user.ID, "h1"))

	require.NoError(s.T(), s.store.ClearRefreshHash(s.ctx, user.ID))
	require.NoError(s.T(), s.store.ClearRefreshHash(s.ctx, user.ID))
	require.NoError(s.T(), s.store.ClearRefreshHash(s.ctx, "missing"))

	found, err := s.store.GetByID(s.ctx, user.ID)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), found.RefreshTokenHash)
}

func (s *InMemoryUserStoreSuite) TestDelete() {
	user := s.newUser("a@x.com", domain.UserTypeUser)

	require.NoError(s.T(), s.store.Delete(s.ctx, user.ID))
	assert.ErrorIs(s.T(), s.store.Delete(s.ctx, user.ID), pgx.ErrNoRows)

	_, err := s.store.GetByID(s.ctx, user.ID)
	assert.ErrorIs(s.T(), err, pgx.ErrNoRows)
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func TestInMemoryProductStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryProductStore()

	owned := &domain.Product{UserID: "owner", Name: "Chair", Price: 10, Stock: 2}
	require.NoError(t, store.Create(ctx, owned))
	require.NoError(t, store.Create(ctx, &domain.Product{UserID: "owner", Name: "Desk", Price: 50}))
	require.NoError(t, store.Create(ctx, &domain.Product{UserID: "other", Name: "Lamp", Price: 5}))

	list, err := store.ListByUser(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	update := *owned
	update.UserID = "hijacker"
	update.Price = 12
	require.NoError(t, store.Update(ctx, &update))
	found, err := store.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", found.UserID, "owner is immutable")
	assert.Equal(t, 12.0, found.Price)

	deleted, err := store.DeleteByUser(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.GetByID(ctx, owned.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, store.Delete(ctx, owned.ID), pgx.ErrNoRows)
}
