package rpc

import (
	"context"
	"encoding/json"

	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/messaging"
	"github.com/spec-kit/storefront/internal/service"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// TokenValidator is the auth service capability exposed over the broker.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
}

// Registrar accepts pattern handlers; *messaging.RPCServer satisfies it.
type Registrar interface {
	Handle(pattern string, h messaging.HandlerFunc)
}

// RegisterAuthHandlers binds the auth service message patterns.
func RegisterAuthHandlers(server Registrar, validator TokenValidator) {
	server.Handle(service.PatternValidateToken, ValidateToken(validator))
}

// ValidateToken answers validate-token requests with the decoded claims.
func ValidateToken(validator TokenValidator) messaging.HandlerFunc {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		var req service.ValidateTokenRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, apperrors.ErrInvalidToken.With(err)
		}
		return validator.ValidateToken(ctx, req.Token)
	}
}
