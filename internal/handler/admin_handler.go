package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/logger"
)

// ShowLoginPage renders the admin sign-in form.
func (a *API) ShowLoginPage(c *gin.Context) {
	if s, ok := a.currentSession(c); ok {
		c.Redirect(http.StatusSeeOther, landingFor(s))
		return
	}
	a.renderHTML(c, http.StatusOK, "login.html", gin.H{"title": "Admin Login"})
}

// Login signs the user in and stores the session in the cookie.
func (a *API) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	s, err := a.auth.SignIn(c.Request.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) && !auth.IsValidation(err) {
			status = http.StatusBadGateway
			c.Error(err)
		}
		a.renderHTML(c, status, "login.html", gin.H{
			"title":  "Admin Login",
			"email":  email,
			"toasts": []toast{{Level: "error", Message: "Login failed: " + errorMessage(err)}},
		})
		return
	}

	if err := saveAuthSession(c, s); err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "login.html", gin.H{
			"title":  "Admin Login",
			"toasts": []toast{{Level: "error", Message: "Login failed: could not save session"}},
		})
		return
	}
	addToast(c, "success", "Logged in successfully")
	c.Redirect(http.StatusSeeOther, landingFor(s))
}

// Logout ends the remote session and clears the cookie.
func (a *API) Logout(c *gin.Context) {
	if s, ok := loadAuthSession(c); ok {
		if err := a.auth.SignOut(c.Request.Context(), s.AccessToken); err != nil {
			log := logger.Component("auth")
			log.Warn().Err(err).Str("email", s.Email).Msg("remote sign out failed")
		}
	}
	clearAuthSession(c)
	addToast(c, "success", "Logged out successfully")
	c.Redirect(http.StatusSeeOther, "/")
}

// ShowPasswordResetPage renders the "forgot password" form.
func (a *API) ShowPasswordResetPage(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "reset.html", gin.H{"title": "Reset Password"})
}

// RequestPasswordReset mails a recovery link back to this site.
func (a *API) RequestPasswordReset(c *gin.Context) {
	email := c.PostForm("email")
	err := a.auth.SendPasswordReset(c.Request.Context(), email, a.siteURL+"/auth/recover")
	if err != nil {
		status := http.StatusBadRequest
		if !auth.IsValidation(err) {
			status = http.StatusBadGateway
			c.Error(err)
		}
		a.renderHTML(c, status, "reset.html", gin.H{
			"title":  "Reset Password",
			"email":  email,
			"toasts": []toast{{Level: "error", Message: "Failed to send reset email: " + errorMessage(err)}},
		})
		return
	}
	a.renderHTML(c, http.StatusOK, "reset.html", gin.H{
		"title":  "Reset Password",
		"sent":   true,
		"email":  auth.NormalizeEmail(email),
		"toasts": []toast{{Level: "success", Message: "Password reset email sent! Check your inbox."}},
	})
}

// ShowRecoveryPage validates the token from the reset link and asks for a new
// password. The token is kept in the session, never in a form field. Links
// that carry the token in the URL fragment are handled by the page script,
// which reloads with the token as a query parameter.
func (a *API) ShowRecoveryPage(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token_hash"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}

	session := sessions.Default(c)
	if token == "" {
		if pending, _ := session.Get(sessionRecovery).(string); pending != "" {
			a.renderHTML(c, http.StatusOK, "recover.html", gin.H{"title": "Set New Password", "ready": true})
			return
		}
		a.renderHTML(c, http.StatusOK, "recover.html", gin.H{"title": "Set New Password"})
		return
	}

	recovered, err := a.auth.RecoverSession(c.Request.Context(), token)
	if err != nil {
		addToast(c, "error", "Failed to update password: "+errorMessage(err))
		c.Redirect(http.StatusSeeOther, "/auth/reset")
		return
	}
	session.Set(sessionRecovery, recovered.AccessToken)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusSeeOther, "/auth/recover")
}

// CompleteRecovery sets the new password using the recovery token.
func (a *API) CompleteRecovery(c *gin.Context) {
	session := sessions.Default(c)
	token, _ := session.Get(sessionRecovery).(string)
	if token == "" {
		addToast(c, "error", "Your reset link has expired, please request a new one")
		c.Redirect(http.StatusSeeOther, "/auth/reset")
		return
	}

	password := c.PostForm("password")
	confirm := c.PostForm("confirm_password")
	if err := auth.ValidateNewPassword(password, confirm); err != nil {
		a.renderHTML(c, http.StatusBadRequest, "recover.html", gin.H{
			"title":  "Set New Password",
			"ready":  true,
			"toasts": []toast{{Level: "error", Message: passwordPolicyMessage(err)}},
		})
		return
	}

	if err := a.auth.UpdatePassword(c.Request.Context(), token, password); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrInvalidToken) {
			status = http.StatusUnauthorized
		}
		a.renderHTML(c, status, "recover.html", gin.H{
			"title":  "Set New Password",
			"ready":  true,
			"toasts": []toast{{Level: "error", Message: "Failed to update password: " + errorMessage(err)}},
		})
		return
	}

	session.Delete(sessionRecovery)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	addToast(c, "success", "Password updated successfully!")
	c.Redirect(http.StatusSeeOther, "/auth/login")
}

// ShowChangePasswordPage renders the change-password form.
func (a *API) ShowChangePasswordPage(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "password.html", gin.H{"title": "Change Password"})
}

// ChangePassword verifies the current password and sets a new one. The
// session is renewed because some backends revoke older tokens.
func (a *API) ChangePassword(c *gin.Context) {
	s, ok := a.currentSession(c)
	if !ok {
		a.rejectAnonymous(c)
		return
	}

	current := c.PostForm("current_password")
	next := c.PostForm("new_password")
	confirm := c.PostForm("confirm_password")

	err := auth.ChangePassword(c.Request.Context(), a.auth, s, current, next, confirm)
	if err != nil {
		status := http.StatusBadRequest
		message := passwordPolicyMessage(err)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			message = "Current password is incorrect"
		case !auth.IsValidation(err):
			status = http.StatusBadGateway
			message = "Failed to update password: " + errorMessage(err)
			c.Error(err)
		}
		a.renderHTML(c, status, "password.html", gin.H{
			"title":  "Change Password",
			"toasts": []toast{{Level: "error", Message: message}},
		})
		return
	}

	renewed, err := a.auth.SignIn(c.Request.Context(), s.Email, next)
	if err != nil {
		clearAuthSession(c)
		addToast(c, "success", "Password updated successfully! Please sign in again.")
		c.Redirect(http.StatusSeeOther, "/auth/login")
		return
	}
	if err := saveAuthSession(c, renewed); err != nil {
		c.Error(err)
	}
	addToast(c, "success", "Password updated successfully!")
	c.Redirect(http.StatusSeeOther, landingFor(renewed))
}

func passwordPolicyMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, auth.ErrPasswordTooShort):
		return "Password must be at least 6 characters"
	case errors.Is(err, auth.ErrPasswordRequired):
		return "Password is required"
	}
	return errorMessage(err)
}

func landingFor(s auth.Session) string {
	if s.IsAdmin {
		return "/admin/gallery"
	}
	return "/"
}
