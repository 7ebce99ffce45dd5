package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/db"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenPurposeAccess   = "access"
	tokenPurposeRefresh  = "refresh"
	tokenPurposeRecovery = "recovery"

	defaultAccessTTL   = time.Hour
	defaultRefreshTTL  = 7 * 24 * time.Hour
	defaultRecoveryTTL = 30 * time.Minute
)

var ErrSessionSecretMissing = errors.New("session secret is required for local auth")

// LocalAuthService signs users in against the local users table. Tokens are
// HS256 JWTs carrying a stamp of the password hash, so changing the password
// invalidates every token issued before.
type LocalAuthService struct {
	db          *gorm.DB
	secret      []byte
	mailer      Mailer
	accessTTL   time.Duration
	refreshTTL  time.Duration
	recoveryTTL time.Duration
	now         func() time.Time
}

var (
	_ auth.Authenticator = (*LocalAuthService)(nil)
	_ auth.Provisioner   = (*LocalAuthService)(nil)
)

type localClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Stamp   string `json:"stamp"`
}

// NewLocalAuthService creates a LocalAuthService. mailer may be nil, in which
// case password reset mails cannot be sent.
func NewLocalAuthService(gdb *gorm.DB, secret string, mailer Mailer) (*LocalAuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSessionSecretMissing
	}
	return &LocalAuthService{
		db:          gdb,
		secret:      []byte(secret),
		mailer:      mailer,
		accessTTL:   defaultAccessTTL,
		refreshTTL:  defaultRefreshTTL,
		recoveryTTL: defaultRecoveryTTL,
		now:         time.Now,
	}, nil
}

// SignIn checks the bcrypt hash and issues an access and refresh token.
func (s *LocalAuthService) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	if err := auth.ValidateCredentials(email, password); err != nil {
		return auth.Session{}, err
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.Session{}, auth.ErrInvalidCredentials
		}
		return auth.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return auth.Session{}, auth.ErrInvalidCredentials
	}
	return s.issueSession(user)
}

// SignOut is a no-op: tokens are stateless and the cookie session is cleared
// by the caller.
func (s *LocalAuthService) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

// Refresh issues a new session from a refresh token.
func (s *LocalAuthService) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	user, _, err := s.verify(ctx, refreshToken, tokenPurposeRefresh)
	if err != nil {
		return auth.Session{}, err
	}
	return s.issueSession(user)
}

// SendPasswordReset mails a recovery link to redirectTo. Unknown addresses
// succeed silently so the form cannot be used to probe accounts.
func (s *LocalAuthService) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return auth.ErrEmailRequired
	}
	if s.mailer == nil {
		return ErrMailerNotConfigured
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, _, err := s.sign(user, tokenPurposeRecovery, s.recoveryTTL)
	if err != nil {
		return err
	}
	link, err := recoveryLink(redirectTo, token)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Someone asked to reset the password for %s.\n\nOpen this link within %d minutes to choose a new password:\n%s\n\nIf this was not you, ignore this message.\n",
		user.Email, int(s.recoveryTTL.Minutes()), link)
	return s.mailer.Send(ctx, Mail{To: []string{user.Email}, Subject: "Reset your password", Body: body})
}

// RecoverSession validates a recovery token. The returned session carries the
// recovery token itself, which is only good for UpdatePassword.
func (s *LocalAuthService) RecoverSession(ctx context.Context, token string) (auth.Session, error) {
	user, claims, err := s.verify(ctx, token, tokenPurposeRecovery)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		UserID:      strconv.FormatUint(uint64(user.ID), 10),
		Email:       user.Email,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		IsAdmin:     user.IsAdmin(),
	}, nil
}

// UpdatePassword accepts an access or recovery token.
func (s *LocalAuthService) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if strings.TrimSpace(accessToken) == "" {
		return auth.ErrNotSignedIn
	}
	if err := auth.ValidateNewPassword(newPassword, newPassword); err != nil {
		return err
	}
	user, _, err := s.verify(ctx, accessToken, tokenPurposeAccess, tokenPurposeRecovery)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&user).Update("password", string(hashed)).Error
}

// VerifyAccessToken resolves an access token to its session.
func (s *LocalAuthService) VerifyAccessToken(ctx context.Context, token string) (auth.Session, error) {
	user, claims, err := s.verify(ctx, token, tokenPurposeAccess)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		UserID:      strconv.FormatUint(uint64(user.ID), 10),
		Email:       user.Email,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		IsAdmin:     user.IsAdmin(),
	}, nil
}

// EnsureAdmin implements auth.Provisioner over the local users table.
func (s *LocalAuthService) EnsureAdmin(ctx context.Context, email, password string) (auth.ProvisionResult, error) {
	if err := auth.ValidateCredentials(email, password); err != nil {
		return auth.ProvisionResult{}, err
	}
	if err := auth.ValidateNewPassword(password, password); err != nil {
		return auth.ProvisionResult{}, err
	}
	created, err := db.EnsureAdmin(s.db.WithContext(ctx), email, password)
	if err != nil {
		return auth.ProvisionResult{}, err
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return auth.ProvisionResult{}, err
	}
	result := auth.ProvisionResult{
		UserID:  strconv.FormatUint(uint64(user.ID), 10),
		Created: created,
		Message: "Admin role assigned to existing user",
	}
	if created {
		result.Message = "Admin user created successfully"
	}
	return result, nil
}

func (s *LocalAuthService) findByEmail(ctx context.Context, email string) (db.User, error) {
	var user db.User
	err := s.db.WithContext(ctx).Where("email = ?", auth.NormalizeEmail(email)).First(&user).Error
	return user, err
}

func (s *LocalAuthService) issueSession(user db.User) (auth.Session, error) {
	access, expires, err := s.sign(user, tokenPurposeAccess, s.accessTTL)
	if err != nil {
		return auth.Session{}, err
	}
	refresh, _, err := s.sign(user, tokenPurposeRefresh, s.refreshTTL)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		UserID:       strconv.FormatUint(uint64(user.ID), 10),
		Email:        user.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		IsAdmin:      user.IsAdmin(),
	}, nil
}

func (s *LocalAuthService) sign(user db.User, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(ttl)
	claims := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:   user.Email,
		Purpose: purpose,
		Stamp:   passwordStamp(user.Password),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, expires, nil
}

func (s *LocalAuthService) verify(ctx context.Context, token string, purposes ...string) (db.User, *localClaims, error) {
	claims := &localClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, auth.ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return db.User{}, nil, auth.ErrInvalidToken
	}

	allowed := false
	for _, purpose := range purposes {
		if claims.Purpose == purpose {
			allowed = true
			break
		}
	}
	if !allowed {
		return db.User{}, nil, auth.ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return db.User{}, nil, auth.ErrInvalidToken
	}
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.User{}, nil, auth.ErrInvalidToken
		}
		return db.User{}, nil, err
	}
	if passwordStamp(user.Password) != claims.Stamp {
		return db.User{}, nil, auth.ErrInvalidToken
	}
	return user, claims, nil
}

func passwordStamp(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:])[:16]
}

func recoveryLink(redirectTo, token string) (string, error) {
	target, err := url.Parse(strings.TrimSpace(redirectTo))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return "", fmt.Errorf("invalid password reset redirect %q", redirectTo)
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()
	return target.String(), nil
}
