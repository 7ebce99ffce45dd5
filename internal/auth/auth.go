// Package auth holds the session model and the contracts every sign-in
// backend implements, plus the password rules shared by all of them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted anywhere on the site.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrNotAdmin           = errors.New("admin access required")
)

// Session is what a successful sign-in yields. IsAdmin only decides which
// controls are shown; the backend still enforces row access itself.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsAdmin      bool      `json:"is_admin"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Authenticator is a sign-in backend.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	// SendPasswordReset mails a recovery link that lands on redirectTo.
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
	// RecoverSession exchanges the token from a recovery link for a session.
	RecoverSession(ctx context.Context, token string) (Session, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// ProvisionResult describes what EnsureAdmin did.
type ProvisionResult struct {
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
	Message string `json:"message"`
}

// Provisioner creates or promotes the site administrator.
type Provisioner interface {
	EnsureAdmin(ctx context.Context, email, password string) (ProvisionResult, error)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks sign-in input before any backend call.
func ValidateCredentials(email, password string) error {
	if NormalizeEmail(email) == "" {
		return ErrEmailRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// ValidateNewPassword enforces the length rule and the confirmation match.
func ValidateNewPassword(password, confirm string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// ChangePassword re-verifies current by signing in again, then sets next.
func ChangePassword(ctx context.Context, a Authenticator, s Session, current, next, confirm string) error {
	if s.AccessToken == "" || s.Email == "" {
		return ErrNotSignedIn
	}
	if current == "" {
		return ErrPasswordRequired
	}
	if err := ValidateNewPassword(next, confirm); err != nil {
		return err
	}
	verified, err := a.SignIn(ctx, s.Email, current)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fmt.Errorf("current password is incorrect: %w", ErrInvalidCredentials)
		}
		return fmt.Errorf("verify current password: %w", err)
	}
	if err := a.UpdatePassword(ctx, verified.AccessToken, next); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// IsValidation reports whether err came from input checks.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmailRequired, ErrPasswordRequired, ErrPasswordTooShort, ErrPasswordMismatch} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type accessTokenKey struct{}

// WithAccessToken attaches the signed-in user's access token to ctx so remote
// stores can act on the user's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, strings.TrimSpace(token))
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
