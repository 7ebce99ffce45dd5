package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/logger"
)

// SessionName is the cookie carrying the signed session.
const SessionName = "folio_session"

const (
	sessionUserID   = "user_id"
	sessionEmail    = "email"
	sessionAccess   = "access_token"
	sessionRefresh  = "refresh_token"
	sessionExpires  = "expires_at"
	sessionAdmin    = "is_admin"
	sessionRecovery = "recovery_token"

	toastFlashKey     = "toasts"
	authSessionCtxKey = "__auth_session"
	themeCookie       = "theme"
)

// toast is a one-shot notification rendered by the layout.
type toast struct {
	Level   string
	Message string
}

func addToast(c *gin.Context, level, message string) {
	session := sessions.Default(c)
	session.AddFlash(level+"|"+message, toastFlashKey)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
}

func popToasts(c *gin.Context) []toast {
	session := sessions.Default(c)
	flashes := session.Flashes(toastFlashKey)
	if len(flashes) == 0 {
		return nil
	}
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	out := make([]toast, 0, len(flashes))
	for _, raw := range flashes {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		level, message, found := strings.Cut(value, "|")
		if !found {
			level, message = "success", value
		}
		out = append(out, toast{Level: level, Message: message})
	}
	return out
}

func saveAuthSession(c *gin.Context, s auth.Session) error {
	session := sessions.Default(c)
	session.Set(sessionUserID, s.UserID)
	session.Set(sessionEmail, s.Email)
	session.Set(sessionAccess, s.AccessToken)
	session.Set(sessionRefresh, s.RefreshToken)
	session.Set(sessionExpires, s.ExpiresAt.Unix())
	session.Set(sessionAdmin, s.IsAdmin)
	session.Delete(sessionRecovery)
	c.Set(authSessionCtxKey, s)
	return session.Save()
}

func clearAuthSession(c *gin.Context) {
	session := sessions.Default(c)
	for _, key := range []string{sessionUserID, sessionEmail, sessionAccess, sessionRefresh, sessionExpires, sessionAdmin, sessionRecovery} {
		session.Delete(key)
	}
	c.Set(authSessionCtxKey, nil)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
}

func loadAuthSession(c *gin.Context) (auth.Session, bool) {
	session := sessions.Default(c)
	access, _ := session.Get(sessionAccess).(string)
	if access == "" {
		return auth.Session{}, false
	}
	s := auth.Session{AccessToken: access}
	s.UserID, _ = session.Get(sessionUserID).(string)
	s.Email, _ = session.Get(sessionEmail).(string)
	s.RefreshToken, _ = session.Get(sessionRefresh).(string)
	s.IsAdmin, _ = session.Get(sessionAdmin).(bool)
	if expires, ok := session.Get(sessionExpires).(int64); ok && expires > 0 {
		s.ExpiresAt = time.Unix(expires, 0)
	}
	return s, true
}

// currentSession returns the signed-in session, refreshing it when the access
// token has expired. A failed refresh signs the user out.
func (a *API) currentSession(c *gin.Context) (auth.Session, bool) {
	if cached, exists := c.Get(authSessionCtxKey); exists {
		s, ok := cached.(auth.Session)
		return s, ok
	}

	s, ok := loadAuthSession(c)
	if !ok {
		return auth.Session{}, false
	}
	if !s.Expired(a.now()) {
		c.Set(authSessionCtxKey, s)
		return s, true
	}
	if s.RefreshToken == "" || a.auth == nil {
		clearAuthSession(c)
		return auth.Session{}, false
	}

	refreshed, err := a.auth.Refresh(c.Request.Context(), s.RefreshToken)
	if err != nil {
		log := logger.Component("auth")
		log.Info().Err(err).Str("email", s.Email).Msg("session refresh failed")
		clearAuthSession(c)
		return auth.Session{}, false
	}
	if err := saveAuthSession(c, refreshed); err != nil {
		c.Error(err)
	}
	return refreshed, true
}

type sessionViewModel struct {
	SignedIn bool
	IsAdmin  bool
	Email    string
}

func (a *API) sessionView(c *gin.Context) sessionViewModel {
	s, ok := a.currentSession(c)
	if !ok {
		return sessionViewModel{}
	}
	return sessionViewModel{SignedIn: true, IsAdmin: s.IsAdmin, Email: s.Email}
}

// RequireSignIn rejects requests without a valid session and scopes the
// request context to the user's access token.
func (a *API) RequireSignIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := a.currentSession(c)
		if !ok {
			a.rejectAnonymous(c)
			return
		}
		c.Request = c.Request.WithContext(auth.WithAccessToken(c.Request.Context(), s.AccessToken))
		c.Next()
	}
}

// RequireAdmin is RequireSignIn plus the admin role check. It only gates the
// UI; the remote store enforces its own row-level policies.
func (a *API) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := a.currentSession(c)
		if !ok {
			a.rejectAnonymous(c)
			return
		}
		if !s.IsAdmin {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": auth.ErrNotAdmin.Error()})
				return
			}
			addToast(c, "error", "Admin access required")
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(auth.WithAccessToken(c.Request.Context(), s.AccessToken))
		c.Next()
	}
}

func (a *API) rejectAnonymous(c *gin.Context) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrNotSignedIn.Error()})
		return
	}
	addToast(c, "error", "Please sign in first")
	c.Redirect(http.StatusSeeOther, "/auth/login")
	c.Abort()
}

func themeFrom(c *gin.Context) string {
	if value, err := c.Cookie(themeCookie); err == nil && value == "dark" {
		return "dark"
	}
	return "light"
}
