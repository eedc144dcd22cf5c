package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/config"
	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/events"
	"github.com/spec-kit/storefront/internal/repository"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

type failingDispatcher struct {
	*events.Registry
}

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return errors.New("broker down")
}

type stallingDispatcher struct {
	*events.Registry
	release chan struct{}
}

func (d stallingDispatcher) Publish(context.Context, events.Event) error {
	<-d.release
	return nil
}

type AuthServiceSuite struct {
	suite.Suite
	ctx        context.Context
	users      *repository.InMemoryUserStore
	issuer     *auth.TokenIssuer
	hasher     *auth.Hasher
	dispatcher events.Dispatcher
	published  []events.Event
	svc        *AuthService
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = repository.NewInMemoryUserStore()
	s.issuer = auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     10 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}, auth.NewRoleTagger("role-secret"))
	s.hasher = auth.NewHasher(bcrypt.MinCost, 4)
	s.published = nil

	dispatcher := events.NewInMemoryDispatcher()
	var mu sync.Mutex
	record := func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		s.published = append(s.published, e)
		return nil
	}
	dispatcher.Subscribe(events.EventUserCreated, record)
	dispatcher.Subscribe(events.EventUserDeleted, record)
	s.dispatcher = dispatcher

	s.svc = s.newService(dispatcher, "fallback-secret")
}

func (s *AuthServiceSuite) newService(dispatcher events.Dispatcher, fallback string) *AuthService {
	return NewAuthService(config.AuthConfig{SignupFallbackSecret: fallback}, AuthDependencies{
		Users:      s.users,
		Issuer:     s.issuer,
		Hasher:     s.hasher,
		Dispatcher: dispatcher,
	})
}

func (s *AuthServiceSuite) signup(email string) domain.TokenPair {
	pair, err := s.svc.SignupLocal(s.ctx, SignupInput{Name: "Ann", Email: email, Password: "pw", UserType: domain.UserTypeUser})
	s.Require().NoError(err)
	return pair
}

func (s *AuthServiceSuite) storedUser(email string) *domain.User {
	user, err := s.users.GetByEmail(s.ctx, email, domain.UserTypeUser)
	s.Require().NoError(err)
	return user
}

func (s *AuthServiceSuite) TestSignupIssuesVerifiablePairAndStoresRefreshHash() {
	pair := s.signup("a@x.com")

	access, err := s.issuer.VerifyAccess(pair.AccessToken)
	s.Require().NoError(err)
	refresh, err := s.issuer.VerifyRefresh(pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(access.SubjectID, refresh.SubjectID)

	user := s.storedUser("a@x.com")
	s.Require().NotNil(user.RefreshTokenHash)
	ok, err := s.hasher.VerifyToken(s.ctx, pair.RefreshToken, *user.RefreshTokenHash)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.hasher.Verify(s.ctx, "pw", user.PasswordHash)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().Len(s.published, 1)
	s.Equal(events.EventUserCreated, s.published[0].Type)
	var payload events.UserCreatedPayload
	s.Require().NoError(s.published[0].Decode(&payload))
	s.Equal(user.ID, payload.User.ID)
	s.NotContains(string(s.published[0].Payload), "password")
}

func (s *AuthServiceSuite) TestSignupTwiceIsDuplicate() {
	s.signup("a@x.com")

	_, err := s.svc.SignupLocal(s.ctx, SignupInput{Email: "A@x.com", Password: "other"})
	s.ErrorIs(err, apperrors.ErrDuplicateUser)
}

func (s *AuthServiceSuite) TestSameEmailDifferentUserTypeIsAllowed() {
	s.signup("a@x.com")

	_, err := s.svc.SignupLocal(s.ctx, SignupInput{Email: "a@x.com", Password: "pw", UserType: domain.UserTypeVendor})
	s.NoError(err)
}

func (s *AuthServiceSuite) TestSignupRejectsInvalidInput() {
	_, err := s.svc.SignupLocal(s.ctx, SignupInput{Email: "nope", Password: "pw"})
	var domainErr *apperrors.DomainError
	s.Require().ErrorAs(err, &domainErr)
	s.Equal(apperrors.CodeValidationFailed, domainErr.Code)

	_, err = s.svc.SignupLocal(s.ctx, SignupInput{Email: "a@x.com", Password: "pw", UserType: "ROOT"})
	s.Require().ErrorAs(err, &domainErr)
	s.Contains(domainErr.Details, "user_type")
}

func (s *AuthServiceSuite) TestSignupWithoutPasswordUsesFallbackSecret() {
	_, err := s.svc.SignupLocal(s.ctx, SignupInput{Email: "b@x.com"})
	s.Require().NoError(err)

	_, err = s.svc.SigninLocal(s.ctx, SigninInput{Email: "b@x.com", Password: "fallback-secret"})
	s.NoError(err)
}

func (s *AuthServiceSuite) TestSignupWithoutPasswordOrFallbackFails() {
	svc := s.newService(s.dispatcher, "")
	_, err := svc.SignupLocal(s.ctx, SignupInput{Email: "b@x.com"})
	var domainErr *apperrors.DomainError
	s.Require().ErrorAs(err, &domainErr)
	s.Equal(apperrors.CodeValidationFailed, domainErr.Code)
}

func (s *AuthServiceSuite) TestEventFailureDoesNotFailSignup() {
	svc := s.newService(failingDispatcher{events.NewRegistry()}, "")
	pair, err := svc.SignupLocal(s.ctx, SignupInput{Email: "c@x.com", Password: "pw"})
	s.Require().NoError(err)
	s.NotEmpty(pair.AccessToken)
}

func (s *AuthServiceSuite) TestStalledPublishDoesNotHoldSignup() {
	release := make(chan struct{})
	defer close(release)
	svc := s.newService(stallingDispatcher{Registry: events.NewRegistry(), release: release}, "")
	svc.publishTimeout = 20 * time.Millisecond

	start := time.Now()
	pair, err := svc.SignupLocal(s.ctx, SignupInput{Email: "d@x.com", Password: "pw"})
	s.Require().NoError(err)
	s.NotEmpty(pair.AccessToken)
	s.Less(time.Since(start), time.Second)
	s.NotNil(s.storedUser("d@x.com").RefreshTokenHash)
}

func (s *AuthServiceSuite) TestSigninRotatesRefreshHash() {
	signupPair := s.signup("a@x.com")
	before := *s.storedUser("a@x.com").RefreshTokenHash

	pair, err := s.svc.SigninLocal(s.ctx, SigninInput{Email: "a@x.com", Password: "pw", UserType: domain.UserTypeUser})
	s.Require().NoError(err)
	s.NotEqual(signupPair.RefreshToken, pair.RefreshToken)

	after := *s.storedUser("a@x.com").RefreshTokenHash
	s.NotEqual(before, after)

	ok, err := s.hasher.VerifyToken(s.ctx, signupPair.RefreshToken, after)
	s.Require().NoError(err)
	s.False(ok, "signin must invalidate the previous refresh token")
}

func (s *AuthServiceSuite) TestSigninErrors() {
	s.signup("a@x.com")

	_, err := s.svc.SigninLocal(s.ctx, SigninInput{Email: "missing@x.com", Password: "pw"})
	s.ErrorIs(err, apperrors.ErrUserNotFound)

	_, err = s.svc.SigninLocal(s.ctx, SigninInput{Email: "a@x.com", Password: "wrong"})
	s.ErrorIs(err, apperrors.ErrInvalidCredentials)

	_, err = s.svc.SigninLocal(s.ctx, SigninInput{Email: "a@x.com", Password: "pw", UserType: domain.UserTypeAdmin})
	s.ErrorIs(err, apperrors.ErrUserNotFound)
}

func (s *AuthServiceSuite) TestRefreshRotatesAndRejectsReplay() {
	pair := s.signup("a@x.com")
	userID := s.storedUser("a@x.com").ID

	next, err := s.svc.RefreshTokens(s.ctx, userID, pair.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(pair.RefreshToken, next.RefreshToken)

	_, err = s.svc.RefreshTokens(s.ctx, userID, pair.RefreshToken)
	s.ErrorIs(err, apperrors.ErrTokenMismatch)

	_, err = s.svc.RefreshTokens(s.ctx, userID, next.RefreshToken)
	s.NoError(err)
}

func (s *AuthServiceSuite) TestConcurrentRefreshHasSingleWinner() {
	pair := s.signup("a@x.com")
	userID := s.storedUser("a@x.com").ID

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.svc.RefreshTokens(s.ctx, userID, pair.RefreshToken)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, mismatches int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperrors.ErrTokenMismatch):
			mismatches++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(callers-1, mismatches)
}

func (s *AuthServiceSuite) TestLogoutClearsSessionAndIsIdempotent() {
	pair := s.signup("a@x.com")
	userID := s.storedUser("a@x.com").ID

	s.Require().NoError(s.svc.Logout(s.ctx, userID))
	s.Require().NoError(s.svc.Logout(s.ctx, userID))
	s.Nil(s.storedUser("a@x.com").RefreshTokenHash)

	_, err := s.svc.RefreshTokens(s.ctx, userID, pair.RefreshToken)
	s.ErrorIs(err, apperrors.ErrUserNotFound)
}

func (s *AuthServiceSuite) TestRefreshUnknownUser() {
	_, err := s.svc.RefreshTokens(s.ctx, "7d0c4a4e-3f1b-4a77-9a4f-0d3c1b2a5e66", "token")
	s.ErrorIs(err, apperrors.ErrUserNotFound)
}

func (s *AuthServiceSuite) TestValidateToken() {
	pair := s.signup("a@x.com")

	claims, err := s.svc.ValidateToken(s.ctx, pair.AccessToken)
	s.Require().NoError(err)
	s.Equal("a@x.com", claims.Email)

	_, err = s.svc.ValidateToken(s.ctx, "garbage-string")
	s.ErrorIs(err, apperrors.ErrInvalidToken)

	_, err = s.svc.ValidateToken(s.ctx, pair.RefreshToken)
	s.ErrorIs(err, apperrors.ErrInvalidToken)

	_, err = s.svc.ValidateToken(s.ctx, "")
	s.ErrorIs(err, apperrors.ErrMissingToken)
}

func (s *AuthServiceSuite) TestProfileLifecycle() {
	s.signup("a@x.com")
	userID := s.storedUser("a@x.com").ID

	mobile := "+100"
	name := "Annie"
	updated, err := s.svc.UpdateUser(s.ctx, userID, ProfilePatch{Name: &name, Mobile: &mobile})
	s.Require().NoError(err)
	s.Equal("Annie", updated.Name)
	s.Equal("+100", updated.Profile.Mobile)

	got, err := s.svc.GetUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(updated.Profile, got.Profile)

	s.Require().NoError(s.svc.DeleteUser(s.ctx, userID))
	_, err = s.svc.GetUser(s.ctx, userID)
	s.ErrorIs(err, apperrors.ErrUserNotFound)
	s.ErrorIs(s.svc.DeleteUser(s.ctx, userID), apperrors.ErrUserNotFound)

	s.Require().Len(s.published, 2)
	s.Equal(events.EventUserDeleted, s.published[1].Type)
}

func TestValidateTokenExpired(t *testing.T) {
	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Millisecond,
	}, auth.NewRoleTagger("role-secret"))
	svc := NewAuthService(config.AuthConfig{}, AuthDependencies{
		Users:  repository.NewInMemoryUserStore(),
		Issuer: issuer,
		Hasher: auth.NewHasher(bcrypt.MinCost, 1),
	})

	pair, err := issuer.Issue(domain.Identity{ID: "u-1", Email: "a@x.com", UserType: domain.UserTypeUser})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = svc.ValidateToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
