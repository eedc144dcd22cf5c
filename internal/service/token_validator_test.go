package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/messaging"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

type fakeCaller struct {
	calls  int
	claims domain.Claims
	err    error
}

func (f *fakeCaller) Call(_ context.Context, pattern string, payload any, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if pattern != PatternValidateToken {
		return errors.New("unexpected pattern")
	}
	if _, ok := payload.(ValidateTokenRequest); !ok {
		return errors.New("unexpected payload")
	}
	raw, err := json.Marshal(f.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func TestRemoteValidatorMissingTokenSkipsBroker(t *testing.T) {
	caller := &fakeCaller{}
	v := NewRemoteTokenValidator(caller, nil, 0, nil)

	_, err := v.Verify(context.Background(), "  ")

	assert.ErrorIs(t, err, apperrors.ErrMissingToken)
	assert.Zero(t, caller.calls)
}

func TestRemoteValidatorReturnsClaims(t *testing.T) {
	caller := &fakeCaller{claims: domain.Claims{SubjectID: ownerA, Email: "a@x.com", ExpiresAt: time.Now().Add(time.Minute)}}
	v := NewRemoteTokenValidator(caller, nil, time.Minute, nil)

	claims, err := v.Verify(context.Background(), "token")

	require.NoError(t, err)
	assert.Equal(t, ownerA, claims.SubjectID)
	assert.Equal(t, 1, caller.calls)
}

func TestRemoteValidatorPassesThroughDomainErrors(t *testing.T) {
	caller := &fakeCaller{err: apperrors.FromCode(apperrors.CodeInvalidToken, "jwt expired")}
	v := NewRemoteTokenValidator(caller, nil, 0, nil)

	_, err := v.Verify(context.Background(), "token")

	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRemoteValidatorInfrastructureFailuresAreUnavailable(t *testing.T) {
	for name, callErr := range map[string]error{
		"timeout":     messaging.ErrTimeout,
		"unavailable": messaging.ErrUnavailable,
		"remote bug":  apperrors.FromCode("SOMETHING_ELSE", "boom"),
	} {
		t.Run(name, func(t *testing.T) {
			v := NewRemoteTokenValidator(&fakeCaller{err: callErr}, nil, 0, nil)

			_, err := v.Verify(context.Background(), "token")

			assert.ErrorIs(t, err, apperrors.ErrValidationUnavailable)
			assert.NotErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	}
}

func TestRemoteValidatorRejectsEmptySubject(t *testing.T) {
	v := NewRemoteTokenValidator(&fakeCaller{}, nil, 0, nil)

	_, err := v.Verify(context.Background(), "token")

	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
