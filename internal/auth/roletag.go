package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/spec-kit/storefront/internal/domain"
)

// RoleTagger derives the obfuscated role tag embedded in tokens.
type RoleTagger struct {
	secret []byte
}

// NewRoleTagger returns a tagger keyed by secret.
func NewRoleTagger(secret string) *RoleTagger {
	return &RoleTagger{secret: []byte(secret)}
}

// Tag returns base64url(HMAC-SHA256(secret, userType)).
func (r *RoleTagger) Tag(userType domain.UserType) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(userType))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// UserType maps a tag back to the user type that produced it.
func (r *RoleTagger) UserType(tag string) (domain.UserType, bool) {
	for _, candidate := range domain.KnownUserTypes {
		if hmac.Equal([]byte(r.Tag(candidate)), []byte(tag)) {
			return candidate, true
		}
	}
	return "", false
}
