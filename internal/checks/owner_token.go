package checks

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"

	"rinbot/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrAlreadyOwner = errors.New("user is already an owner")
	ErrInvalidToken = errors.New("invalid owner token")
)

type OwnerRegistry interface {
	IsOwner(ctx context.Context, userID string) (bool, error)
	AddOwner(ctx context.Context, owner storage.Owner) (bool, error)
}

// OwnerToken is a one-time secret printed at start-up that lets the first
// claimant register as a bot owner.
type OwnerToken struct {
	mu    sync.Mutex
	value string
	used  bool
}

func NewOwnerToken() *OwnerToken {
	return &OwnerToken{value: uuid.NewString()}
}

func (t *OwnerToken) Value() string {
	return t.value
}

func (t *OwnerToken) Used() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Claim registers owner if token matches and has not been consumed yet.
// Claims are serialized so only one caller can ever succeed.
func (t *OwnerToken) Claim(ctx context.Context, registry OwnerRegistry, owner storage.Owner, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	isOwner, err := registry.IsOwner(ctx, owner.UserID)
	if err != nil {
		return err
	}
	if isOwner {
		return ErrAlreadyOwner
	}
	if t.used || subtle.ConstantTimeCompare([]byte(token), []byte(t.value)) != 1 {
		return ErrInvalidToken
	}

	added, err := registry.AddOwner(ctx, owner)
	if err != nil {
		return err
	}
	if !added {
		return ErrAlreadyOwner
	}
	t.used = true
	return nil
}
