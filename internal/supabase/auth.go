package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/folio/internal/auth"
)

// DefaultRolesTable maps users to roles.
const DefaultRolesTable = "user_roles"

// Auth is an auth.Authenticator backed by GoTrue. Admin status comes from the
// roles table, read with the user's own token.
type Auth struct {
	c          *Client
	rolesTable string
	now        func() time.Time
}

var _ auth.Authenticator = (*Auth)(nil)

// Auth returns the GoTrue client. rolesTable defaults to DefaultRolesTable.
func (c *Client) Auth(rolesTable string) *Auth {
	rolesTable = strings.TrimSpace(rolesTable)
	if rolesTable == "" {
		rolesTable = DefaultRolesTable
	}
	return &Auth{c: c, rolesTable: rolesTable, now: time.Now}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

func (a *Auth) sessionFrom(resp tokenResponse) auth.Session {
	session := auth.Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		session.ExpiresAt = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return session
}

// SignIn uses the password grant, then looks up the admin role.
func (a *Auth) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	if err := auth.ValidateCredentials(email, password); err != nil {
		return auth.Session{}, err
	}
	var resp tokenResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		json:   map[string]string{"email": auth.NormalizeEmail(email), "password": password},
	}, &resp)
	if err != nil {
		return auth.Session{}, classifyAuthError("sign in", err)
	}
	return a.withRole(ctx, a.sessionFrom(resp))
}

// Refresh exchanges a refresh token for a new session.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return auth.Session{}, auth.ErrInvalidToken
	}
	var resp tokenResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		json:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return auth.Session{}, classifyAuthError("refresh session", err)
	}
	return a.withRole(ctx, a.sessionFrom(resp))
}

// SignOut revokes the session server-side.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: accessToken}, nil)
	if err != nil && !IsStatus(err, http.StatusUnauthorized) && !IsStatus(err, http.StatusForbidden) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SendPasswordReset asks GoTrue to mail a recovery link back to redirectTo.
func (a *Auth) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return auth.ErrEmailRequired
	}
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  query,
		json:   map[string]string{"email": email},
	}, nil)
	if err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// RecoverSession accepts either the token hash from a recovery email or an
// access token already issued by the recovery redirect.
func (a *Auth) RecoverSession(ctx context.Context, token string) (auth.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Session{}, auth.ErrInvalidToken
	}
	if strings.Count(token, ".") == 2 {
		return a.sessionForAccessToken(ctx, token)
	}

	var resp tokenResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		json:   map[string]string{"type": "recovery", "token_hash": token},
	}, &resp)
	if err != nil {
		return auth.Session{}, classifyAuthError("verify recovery token", err)
	}
	return a.withRole(ctx, a.sessionFrom(resp))
}

func (a *Auth) sessionForAccessToken(ctx context.Context, token string) (auth.Session, error) {
	claims, err := a.c.ParseAccessToken(token)
	if err != nil {
		return auth.Session{}, err
	}
	var user gotrueUser
	if err := a.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: token}, &user); err != nil {
		return auth.Session{}, classifyAuthError("load user", err)
	}
	session := auth.Session{UserID: user.ID, Email: user.Email, AccessToken: token}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return a.withRole(ctx, session)
}

// UpdatePassword sets a new password for the token's user.
func (a *Auth) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if strings.TrimSpace(accessToken) == "" {
		return auth.ErrNotSignedIn
	}
	err := a.c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		json:   map[string]string{"password": newPassword},
		bearer: accessToken,
	}, nil)
	if err != nil {
		return classifyAuthError("update password", err)
	}
	return nil
}

// IsAdmin reports whether the session's user holds the admin role.
func (a *Auth) IsAdmin(ctx context.Context, session auth.Session) (bool, error) {
	if session.UserID == "" || session.AccessToken == "" {
		return false, nil
	}
	query := url.Values{}
	query.Set("select", "role")
	query.Set("user_id", "eq."+session.UserID)
	query.Set("role", "eq.admin")

	var rows []struct {
		Role string `json:"role"`
	}
	err := a.c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + url.PathEscape(a.rolesTable),
		query:  query,
		bearer: session.AccessToken,
	}, &rows)
	if err != nil {
		return false, fmt.Errorf("lookup roles: %w", err)
	}
	return len(rows) > 0, nil
}

func (a *Auth) withRole(ctx context.Context, session auth.Session) (auth.Session, error) {
	if session.UserID == "" && session.AccessToken != "" {
		if claims, err := a.c.ParseAccessToken(session.AccessToken); err == nil {
			session.UserID = claims.Subject
			if session.Email == "" {
				session.Email = claims.Email
			}
		}
	}
	isAdmin, err := a.IsAdmin(ctx, session)
	if err != nil {
		a.c.log.Warn().Err(err).Str("user_id", session.UserID).Msg("admin role lookup failed")
	}
	session.IsAdmin = isAdmin
	return session, nil
}

// classifyAuthError maps GoTrue rejections onto the auth sentinels while
// keeping the server message reachable for toasts.
func classifyAuthError(op string, err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	code := strings.ToLower(apiErr.Code)
	msg := strings.ToLower(apiErr.Message)
	switch {
	case code == "invalid_credentials" || strings.Contains(msg, "invalid login credentials"):
		return fmt.Errorf("%s: %w: %w", op, auth.ErrInvalidCredentials, apiErr)
	case apiErr.Status == http.StatusUnauthorized ||
		strings.Contains(msg, "expired") ||
		(strings.Contains(msg, "invalid") && strings.Contains(msg, "token")):
		return fmt.Errorf("%s: %w: %w", op, auth.ErrInvalidToken, apiErr)
	case code == "weak_password" || strings.Contains(msg, "password should be"):
		return fmt.Errorf("%s: %w: %w", op, auth.ErrPasswordTooShort, apiErr)
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}
