package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/domain"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// PatternValidateToken is the request-reply pattern answered by the auth service.
const PatternValidateToken = "validate-token"

// ValidateTokenRequest is the payload of a validate-token call.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// RPCCaller performs one request-reply round trip.
type RPCCaller interface {
	Call(ctx context.Context, pattern string, payload any, out any) error
}

// RemoteTokenValidator validates bearer tokens by asking the auth service
// over the broker. Successful results may be cached in Redis.
type RemoteTokenValidator struct {
	rpc      RPCCaller
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewRemoteTokenValidator builds a validator. A nil cache or zero ttl
// disables caching.
func NewRemoteTokenValidator(rpc RPCCaller, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *RemoteTokenValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteTokenValidator{
		rpc:      rpc,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Verify returns the claims of token. Domain errors replied by the auth
// service are returned as is; any transport failure becomes
// ValidationUnavailable.
func (v *RemoteTokenValidator) Verify(ctx context.Context, token string) (*domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrMissingToken
	}

	key := cacheKey(token)
	if claims, ok := v.cached(ctx, key); ok {
		return claims, nil
	}

	var claims domain.Claims
	err := v.rpc.Call(ctx, PatternValidateToken, ValidateTokenRequest{Token: token}, &claims)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Code != apperrors.CodeInternal {
			return nil, domainErr
		}
		v.logger.Warn("token validation unavailable", zap.Error(err))
		return nil, apperrors.ErrValidationUnavailable.With(err)
	}
	if claims.SubjectID == "" {
		return nil, apperrors.ErrInvalidToken
	}

	v.store(ctx, key, &claims)
	return &claims, nil
}

func (v *RemoteTokenValidator) cached(ctx context.Context, key string) (*domain.Claims, bool) {
	if v.cache == nil || v.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := v.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			v.logger.Debug("validation cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var claims domain.Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, false
	}
	if !claims.ExpiresAt.IsZero() && !v.now().Before(claims.ExpiresAt) {
		return nil, false
	}
	return &claims, true
}

func (v *RemoteTokenValidator) store(ctx context.Context, key string, claims *domain.Claims) {
	if v.cache == nil || v.cacheTTL <= 0 {
		return
	}
	ttl := v.cacheTTL
	if !claims.ExpiresAt.IsZero() {
		if remaining := claims.ExpiresAt.Sub(v.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, raw, ttl).Err(); err != nil {
		v.logger.Debug("validation cache write failed", zap.Error(err))
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "catalog:token:" + hex.EncodeToString(sum[:])
}
