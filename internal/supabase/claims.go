package supabase

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/folio/internal/auth"
)

// Claims is the part of a GoTrue access token the site cares about.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ParseAccessToken reads the claims of a GoTrue access token. The signature
// is verified when the client was configured with the project's JWT secret;
// otherwise the token is only decoded and its expiry checked.
func (c *Client) ParseAccessToken(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, auth.ErrInvalidToken
	}

	claims := &Claims{}
	if c.jwtSecret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return Claims{}, auth.ErrInvalidToken
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
			return Claims{}, auth.ErrInvalidToken
		}
		return *claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, auth.ErrInvalidToken
		}
		return []byte(c.jwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, auth.ErrInvalidToken
	}
	return *claims, nil
}
