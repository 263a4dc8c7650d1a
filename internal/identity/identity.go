// Package identity resolves opaque bearer tokens to active user identities.
//
// Token issuance and verification belong to the external auth collaborator;
// this package only defines the boundary the rest of the service depends on,
// so no component ever decodes a credential itself.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/typetrack/typetrack/internal/domain/model"
)

// Sentinel kinds for identity errors.
var (
	ErrInvalidToken = errors.New("token is invalid or expired")
	ErrUserDisabled = errors.New("user account is disabled")
	ErrUserUnknown  = errors.New("user not found")
)

// Resolver maps a bearer token to an active user identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.User, error)
}

// UserLookup is the slice of the store the resolver needs.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (model.User, error)
}

// TokenVerifier turns a raw token into the user ID it was issued for.
// Implementations wrap whatever the auth collaborator issues (JWT, session
// keys); the static verifier below serves tests and local setups.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// StoreResolver verifies the token and confirms the user is active.
type StoreResolver struct {
	verifier TokenVerifier
	users    UserLookup
}

// NewStoreResolver creates a resolver backed by a token verifier and a user
// lookup.
func NewStoreResolver(verifier TokenVerifier, users UserLookup) *StoreResolver {
	return &StoreResolver{verifier: verifier, users: users}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, token string) (model.User, error) {
	userID, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return model.User{}, fmt.Errorf("verify token: %w", ErrInvalidToken)
	}

	user, err := r.users.UserByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("lookup %q: %w", userID, ErrUserUnknown)
	}
	if !user.Active {
		return model.User{}, fmt.Errorf("user %q: %w", userID, ErrUserDisabled)
	}
	return user, nil
}

// StaticVerifier maps literal tokens to user IDs. Thread-safe.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewStaticVerifier creates an empty static token table.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]string)}
}

// Issue registers token for userID.
func (v *StaticVerifier) Issue(token, userID string) {
	v.mu.Lock()
	v.tokens[token] = userID
	v.mu.Unlock()
}

// Verify implements TokenVerifier.
func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	v.mu.RLock()
	userID, ok := v.tokens[token]
	v.mu.RUnlock()
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
