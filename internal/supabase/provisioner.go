package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/folio/internal/auth"
)

const adminRole = "admin"

// Provisioner creates the site administrator through the GoTrue admin API.
// It needs the service-role key.
type Provisioner struct {
	c          *Client
	rolesTable string
}

var _ auth.Provisioner = (*Provisioner)(nil)

// Provisioner returns an admin provisioner writing roles to rolesTable.
func (c *Client) Provisioner(rolesTable string) *Provisioner {
	rolesTable = strings.TrimSpace(rolesTable)
	if rolesTable == "" {
		rolesTable = DefaultRolesTable
	}
	return &Provisioner{c: c, rolesTable: rolesTable}
}

// EnsureAdmin creates a confirmed user and grants the admin role. When the
// email is already registered the existing user is promoted instead.
func (p *Provisioner) EnsureAdmin(ctx context.Context, email, password string) (auth.ProvisionResult, error) {
	email = auth.NormalizeEmail(email)
	if err := auth.ValidateCredentials(email, password); err != nil {
		return auth.ProvisionResult{}, err
	}
	if err := auth.ValidateNewPassword(password, password); err != nil {
		return auth.ProvisionResult{}, err
	}

	var created gotrueUser
	err := p.c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/admin/users",
		json:    map[string]any{"email": email, "password": password, "email_confirm": true},
		service: true,
	}, &created)
	if err == nil {
		if err := p.grantAdmin(ctx, created.ID); err != nil {
			return auth.ProvisionResult{}, err
		}
		return auth.ProvisionResult{UserID: created.ID, Created: true, Message: "Admin user created successfully"}, nil
	}
	if !alreadyRegistered(err) {
		return auth.ProvisionResult{}, fmt.Errorf("create admin user: %w", err)
	}

	existing, err := p.findUser(ctx, email)
	if err != nil {
		return auth.ProvisionResult{}, err
	}
	if err := p.grantAdmin(ctx, existing.ID); err != nil {
		return auth.ProvisionResult{}, err
	}
	return auth.ProvisionResult{UserID: existing.ID, Message: "Admin role assigned to existing user"}, nil
}

func alreadyRegistered(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "email_exists" || strings.Contains(strings.ToLower(apiErr.Message), "already been registered")
}

func (p *Provisioner) findUser(ctx context.Context, email string) (gotrueUser, error) {
	const perPage = 200
	for page := 1; page <= 50; page++ {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("per_page", fmt.Sprint(perPage))

		var resp struct {
			Users []gotrueUser `json:"users"`
		}
		err := p.c.do(ctx, request{
			method:  http.MethodGet,
			path:    "/auth/v1/admin/users",
			query:   query,
			service: true,
		}, &resp)
		if err != nil {
			return gotrueUser{}, fmt.Errorf("list users: %w", err)
		}
		for _, user := range resp.Users {
			if auth.NormalizeEmail(user.Email) == email {
				return user, nil
			}
		}
		if len(resp.Users) < perPage {
			break
		}
	}
	return gotrueUser{}, fmt.Errorf("user %s is registered but could not be found", email)
}

func (p *Provisioner) grantAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("grant admin role: missing user id")
	}
	err := p.c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/" + url.PathEscape(p.rolesTable),
		query:   url.Values{"on_conflict": {"user_id,role"}},
		json:    map[string]string{"user_id": userID, "role": adminRole},
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
		service: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}
	return nil
}
