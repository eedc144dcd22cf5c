package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/config"
	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/events"
	"github.com/spec-kit/storefront/internal/observability"
	"github.com/spec-kit/storefront/internal/repository"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

const eventPublishTimeout = 2 * time.Second

// SignupInput holds the fields of a local signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	UserType domain.UserType
	Profile  domain.Profile
}

// SigninInput holds local credentials.
type SigninInput struct {
	Email    string
	Password string
	UserType domain.UserType
}

// ProfilePatch carries optional profile updates; nil fields are untouched.
type ProfilePatch struct {
	Name          *string
	Mobile        *string
	Gender        *string
	MaritalStatus *string
	BirthDate     *time.Time
	Address       *string
}

// AuthService coordinates signup, signin and refresh-token rotation.
type AuthService struct {
	users          repository.UserStore
	issuer         *auth.TokenIssuer
	hasher         *auth.Hasher
	dispatcher     events.Dispatcher
	fallbackSecret string
	publishTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Users      repository.UserStore
	Issuer     *auth.TokenIssuer
	Hasher     *auth.Hasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:          deps.Users,
		issuer:         deps.Issuer,
		hasher:         deps.Hasher,
		dispatcher:     deps.Dispatcher,
		fallbackSecret: cfg.SignupFallbackSecret,
		publishTimeout: eventPublishTimeout,
		logger:         logger,
		metrics:        deps.Metrics,
	}
}

// SignupLocal registers an identity and returns its first token pair.
func (s *AuthService) SignupLocal(ctx context.Context, in SignupInput) (domain.TokenPair, error) {
	in.Email = normalizeEmail(in.Email)
	if in.UserType == "" {
		in.UserType = domain.UserTypeUser
	}
	if err := validateCredentials(in.Email, in.Password, in.UserType); err != nil {
		return domain.TokenPair{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email, in.UserType); err == nil {
		return domain.TokenPair{}, apperrors.ErrDuplicateUser
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenPair{}, err
	}

	password := in.Password
	if password == "" {
		if s.fallbackSecret == "" {
			return domain.TokenPair{}, apperrors.NewValidationError("password required", nil)
		}
		s.logger.Warn("signup without password; using configured fallback secret",
			zap.String("user_type", string(in.UserType)))
		password = s.fallbackSecret
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return domain.TokenPair{}, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		UserType:     in.UserType,
		Profile:      in.Profile,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.TokenPair{}, err
	}

	s.emit(ctx, events.EventUserCreated, events.UserCreatedPayload{User: user.Public()})

	return s.startSession(ctx, user)
}

// SigninLocal verifies credentials and replaces any previous session.
func (s *AuthService) SigninLocal(ctx context.Context, in SigninInput) (domain.TokenPair, error) {
	in.Email = normalizeEmail(in.Email)
	if in.UserType == "" {
		in.UserType = domain.UserTypeUser
	}

	user, err := s.users.GetByEmail(ctx, in.Email, in.UserType)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenPair{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.TokenPair{}, err
	}

	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !ok {
		return domain.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// RefreshTokens exchanges the current refresh token for a new pair. The
// stored hash is swapped only if it still matches what was verified, so
// a refresh token can be redeemed at most once.
func (s *AuthService) RefreshTokens(ctx context.Context, userID, refreshToken string) (domain.TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenPair{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	if user.RefreshTokenHash == nil {
		return domain.TokenPair{}, apperrors.ErrUserNotFound
	}
	current := *user.RefreshTokenHash

	ok, err := s.hasher.VerifyToken(ctx, refreshToken, current)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !ok {
		return domain.TokenPair{}, apperrors.ErrTokenMismatch
	}

	pair, next, err := s.mint(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	swapped, err := s.users.SwapRefreshHash(ctx, user.ID, current, next)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !swapped {
		return domain.TokenPair{}, apperrors.ErrTokenMismatch
	}
	return pair, nil
}

// Logout clears the stored refresh hash. Calling it twice is harmless.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.users.ClearRefreshHash(ctx, userID)
}

// ValidateToken verifies an access token and returns its claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.ErrMissingToken
	}
	return s.issuer.VerifyAccess(token)
}

// Verify satisfies auth.TokenVerifier for the bearer middleware.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.Claims, error) {
	return s.ValidateToken(ctx, token)
}

// RefreshVerifier checks refresh-token signatures for the refresh route.
func (s *AuthService) RefreshVerifier() auth.TokenVerifier {
	return s.issuer.RefreshVerifier()
}

// GetUser returns the identity without secrets.
func (s *AuthService) GetUser(ctx context.Context, userID string) (domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PublicUser{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

// UpdateUser applies a profile patch.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, patch ProfilePatch) (domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PublicUser{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.PublicUser{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.PublicUser{}, apperrors.NewValidationError("name cannot be empty", nil)
		}
		user.Name = name
	}
	if patch.Mobile != nil {
		user.Profile.Mobile = *patch.Mobile
	}
	if patch.Gender != nil {
		user.Profile.Gender = *patch.Gender
	}
	if patch.MaritalStatus != nil {
		user.Profile.MaritalStatus = *patch.MaritalStatus
	}
	if patch.BirthDate != nil {
		user.Profile.BirthDate = patch.BirthDate
	}
	if patch.Address != nil {
		user.Profile.Address = *patch.Address
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublicUser{}, apperrors.ErrUserNotFound
		}
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

// DeleteUser removes the identity permanently.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrUserNotFound
		}
		return err
	}
	s.emit(ctx, events.EventUserDeleted, events.UserDeletedPayload{UserID: userID})
	return nil
}

// startSession issues a pair and overwrites the stored refresh hash.
func (s *AuthService) startSession(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	pair, hash, err := s.mint(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.users.SetRefreshHash(ctx, user.ID, hash); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) mint(ctx context.Context, user *domain.User) (domain.TokenPair, string, error) {
	pair, err := s.issuer.Issue(domain.Identity{ID: user.ID, Email: user.Email, UserType: user.UserType})
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	hash, err := s.hasher.HashToken(ctx, pair.RefreshToken)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	return pair, hash, nil
}

// emit publishes best-effort within publishTimeout; failures are logged and
// counted only. The publish is detached from request cancellation.
func (s *AuthService) emit(ctx context.Context, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	event, err := events.New(eventType, payload)
	if err == nil {
		err = s.publish(ctx, event)
	}
	if err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
		s.metrics.RecordEvent(string(eventType), "publish_failed")
		return
	}
	s.metrics.RecordEvent(string(eventType), "published")
}

func (s *AuthService) publish(ctx context.Context, event events.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.dispatcher.Publish(ctx, event) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateCredentials(email, password string, userType domain.UserType) error {
	details := map[string]any{}
	if email == "" || !strings.Contains(email, "@") {
		details["email"] = "a valid email is required"
	}
	if len(password) > maxPasswordBytes {
		details["password"] = "password must be at most 72 bytes"
	}
	if !userType.Valid() {
		details["user_type"] = "unknown user type"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid signup payload", details)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
