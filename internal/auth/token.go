package auth

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/storefront/internal/domain"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// TokenConfig carries the two independent signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer mints and verifies access/refresh token pairs.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	roles         *RoleTagger
	now           func() time.Time
}

// NewTokenIssuer builds an issuer. Secrets are checked at signing time so a
// misconfigured issuer fails with SigningError instead of minting weak tokens.
func NewTokenIssuer(cfg TokenConfig, roles *RoleTagger) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 10 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		roles:         roles,
		now:           time.Now,
	}
}

// tokenClaims describes the JWT payload shared by both token kinds.
type tokenClaims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	HashType string `json:"hashType"`
	jwt.RegisteredClaims
}

// Issue signs a fresh access and refresh token for the identity.
func (ti *TokenIssuer) Issue(identity domain.Identity) (domain.TokenPair, error) {
	if len(ti.accessSecret) == 0 || len(ti.refreshSecret) == 0 {
		return domain.TokenPair{}, apperrors.ErrSigningError.With(errors.New("token secrets not configured"))
	}

	tag := ti.roles.Tag(identity.UserType)
	access, err := ti.sign(identity, tag, ti.accessSecret, ti.accessTTL)
	if err != nil {
		return domain.TokenPair{}, apperrors.ErrSigningError.With(err)
	}
	refresh, err := ti.sign(identity, tag, ti.refreshSecret, ti.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, apperrors.ErrSigningError.With(err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (ti *TokenIssuer) sign(identity domain.Identity, tag string, secret []byte, ttl time.Duration) (string, error) {
	now := ti.now()
	claims := &tokenClaims{
		ID:       identity.ID,
		Email:    identity.Email,
		HashType: tag,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccess validates an access token and returns its claims.
func (ti *TokenIssuer) VerifyAccess(tokenStr string) (*domain.Claims, error) {
	return ti.verify(tokenStr, ti.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (ti *TokenIssuer) VerifyRefresh(tokenStr string) (*domain.Claims, error) {
	return ti.verify(tokenStr, ti.refreshSecret)
}

func (ti *TokenIssuer) verify(tokenStr string, secret []byte) (*domain.Claims, error) {
	if len(secret) == 0 {
		return nil, apperrors.ErrSigningError.With(errors.New("token secret not configured"))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.ErrInvalidToken.With(err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	if _, known := ti.roles.UserType(claims.HashType); !known {
		return nil, apperrors.ErrInvalidToken.With(errors.New("unknown role tag"))
	}
	return &domain.Claims{
		SubjectID: claims.ID,
		Email:     claims.Email,
		RoleTag:   claims.HashType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// AccessVerifier adapts VerifyAccess to the TokenVerifier interface.
func (ti *TokenIssuer) AccessVerifier() TokenVerifier {
	return VerifierFunc(func(_ context.Context, token string) (*domain.Claims, error) {
		return ti.VerifyAccess(token)
	})
}

// RefreshVerifier adapts VerifyRefresh to the TokenVerifier interface.
func (ti *TokenIssuer) RefreshVerifier() TokenVerifier {
	return VerifierFunc(func(_ context.Context, token string) (*domain.Claims, error) {
		return ti.VerifyRefresh(token)
	})
}
