package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher hashes and verifies secrets with bcrypt. Concurrent computations are
// capped by a weighted semaphore so hashing cannot starve request handling.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher builds a hasher with the given bcrypt cost and worker count.
func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. A mismatch is not an error.
func (h *Hasher) Verify(ctx context.Context, plain, hashed string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HashToken hashes a refresh token. bcrypt only reads the first 72 bytes and
// JWTs for one user share a long prefix, so the token is digested first.
func (h *Hasher) HashToken(ctx context.Context, token string) (string, error) {
	return h.Hash(ctx, digest(token))
}

// VerifyToken checks a refresh token against a HashToken result.
func (h *Hasher) VerifyToken(ctx context.Context, token, hashed string) (bool, error) {
	return h.Verify(ctx, digest(token), hashed)
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
