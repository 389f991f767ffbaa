// Package identity exposes the signed-in user to the booking and car synchronizers.
package identity

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// ContextKey is the gin context key under which the auth middleware stores the User.
const ContextKey = "identity"

// FallbackDisplayName is used when a user has neither display name nor email.
const FallbackDisplayName = "Användare"

// SignInProviderAnonymous is the Firebase sign-in provider of anonymous sessions.
const SignInProviderAnonymous = "anonymous"

var (
	// ErrNoIdentityContext means the accessor was used on a route the auth middleware never ran on.
	ErrNoIdentityContext = errors.New("identity accessor used outside an authenticated context")
	// ErrUnauthenticated means the context carries no signed-in user.
	ErrUnauthenticated = errors.New("user is required")
)

// User is the identity established by the identity provider.
type User struct {
	UID            string `json:"id"`
	DisplayName    string `json:"displayName,omitempty"`
	Email          string `json:"email,omitempty"`
	SignInProvider string `json:"signInProvider,omitempty"`
}

// Anonymous reports whether the user signed in anonymously.
func (u User) Anonymous() bool {
	return u.SignInProvider == SignInProviderAnonymous
}

// Name returns the display name, falling back to the email and then to a placeholder.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return FallbackDisplayName
}

// Accessor wraps the possibly absent user of the current request.
type Accessor struct {
	user *User
}

// NewAccessor returns an accessor over user, which may be nil.
func NewAccessor(user *User) *Accessor {
	return &Accessor{user: user}
}

// FromContext returns the accessor installed by the auth middleware.
func FromContext(c *gin.Context) (*Accessor, error) {
	value, exists := c.Get(ContextKey)
	if !exists {
		return nil, ErrNoIdentityContext
	}
	accessor, ok := value.(*Accessor)
	if !ok || accessor == nil {
		return nil, ErrNoIdentityContext
	}
	return accessor, nil
}

// User returns the raw identity or nil.
func (a *Accessor) User() *User {
	return a.user
}

// Require returns the identity, failing when nobody is signed in.
func (a *Accessor) Require() (User, error) {
	if a.user == nil || a.user.UID == "" {
		return User{}, ErrUnauthenticated
	}
	return *a.user, nil
}

// DisplayName returns the name snapshotted onto new bookings.
func (a *Accessor) DisplayName() (string, error) {
	user, err := a.Require()
	if err != nil {
		return "", err
	}
	return user.Name(), nil
}

// Key returns the stable identity key (the user id).
func (a *Accessor) Key() (string, error) {
	user, err := a.Require()
	if err != nil {
		return "", err
	}
	return user.UID, nil
}
