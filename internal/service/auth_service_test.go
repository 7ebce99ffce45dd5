package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/db"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *captureMailer) Send(ctx context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *captureMailer) last(t *testing.T) Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("expected a mail to be sent")
	}
	return m.sent[len(m.sent)-1]
}

func newLocalAuth(t *testing.T, mailer Mailer) *LocalAuthService {
	t.Helper()
	gdb := setupServiceTestDB(t)
	if _, err := db.EnsureAdmin(gdb, "owner@example.com", "secret1"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	svc, err := NewLocalAuthService(gdb, "test-secret", mailer)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestLocalSignIn(t *testing.T) {
	svc := newLocalAuth(t, nil)
	ctx := context.Background()

	if _, err := svc.SignIn(ctx, "owner@example.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	session, err := svc.SignIn(ctx, "Owner@Example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !session.IsAdmin || session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatalf("unexpected session: %+v", session)
	}

	verified, err := svc.VerifyAccessToken(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Email != "owner@example.com" {
		t.Fatalf("unexpected email %q", verified.Email)
	}

	if _, err := svc.VerifyAccessToken(ctx, session.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("refresh token must not be accepted as access token, got %v", err)
	}
}

func TestLocalTokensExpire(t *testing.T) {
	svc := newLocalAuth(t, nil)
	ctx := context.Background()
	start := time.Now()
	svc.now = func() time.Time { return start }

	session, err := svc.SignIn(ctx, "owner@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	svc.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := svc.VerifyAccessToken(ctx, session.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected expired access token, got %v", err)
	}
	refreshed, err := svc.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.VerifyAccessToken(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("refreshed token should verify: %v", err)
	}
}

func TestLocalPasswordResetFlow(t *testing.T) {
	mailer := &captureMailer{}
	svc := newLocalAuth(t, mailer)
	ctx := context.Background()

	if err := svc.SendPasswordReset(ctx, "unknown@example.com", "https://site.example/auth/recover"); err != nil {
		t.Fatalf("unknown address should not error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("no mail expected for unknown address")
	}

	if err := svc.SendPasswordReset(ctx, "owner@example.com", "https://site.example/auth/recover"); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	sent := mailer.last(t)
	if sent.To[0] != "owner@example.com" {
		t.Fatalf("unexpected recipient %v", sent.To)
	}

	start := strings.Index(sent.Body, "https://site.example/auth/recover?")
	if start < 0 {
		t.Fatalf("mail body has no recovery link: %s", sent.Body)
	}
	link := strings.Fields(sent.Body[start:])[0]
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	token := parsed.Query().Get("token")

	recovery, err := svc.RecoverSession(ctx, token)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if _, err := svc.VerifyAccessToken(ctx, recovery.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("recovery token must not act as an access token")
	}

	if err := svc.UpdatePassword(ctx, recovery.AccessToken, "brand-new"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if _, err := svc.SignIn(ctx, "owner@example.com", "brand-new"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if err := svc.UpdatePassword(ctx, recovery.AccessToken, "another-one"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("recovery token must be single use, got %v", err)
	}
}

func TestLocalChangePasswordInvalidatesOldSessions(t *testing.T) {
	svc := newLocalAuth(t, nil)
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "owner@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := auth.ChangePassword(ctx, svc, session, "secret1", "secret2", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.VerifyAccessToken(ctx, session.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("old session should be invalid after password change, got %v", err)
	}
	if err := svc.UpdatePassword(ctx, "garbage", "secret3"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestLocalPasswordResetNeedsMailer(t *testing.T) {
	svc := newLocalAuth(t, nil)
	err := svc.SendPasswordReset(context.Background(), "owner@example.com", "https://site.example/auth/recover")
	if !errors.Is(err, ErrMailerNotConfigured) {
		t.Fatalf("expected mailer not configured, got %v", err)
	}
}

func TestLocalEnsureAdmin(t *testing.T) {
	svc := newLocalAuth(t, nil)
	ctx := context.Background()

	result, err := svc.EnsureAdmin(ctx, "second@example.com", "secret1")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !result.Created || result.Message != "Admin user created successfully" {
		t.Fatalf("unexpected result: %+v", result)
	}

	result, err = svc.EnsureAdmin(ctx, "second@example.com", "secret1")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if result.Created {
		t.Fatalf("second call must not create a user")
	}

	if _, err := svc.EnsureAdmin(ctx, "third@example.com", "123"); !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("expected password too short, got %v", err)
	}
}
