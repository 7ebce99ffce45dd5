package db

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdminCreatesThenPromotes(t *testing.T) {
	conn, err := Open(fmt.Sprintf("file:db-test-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	created, err := EnsureAdmin(conn, " Owner@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created {
		t.Fatalf("expected a new user")
	}

	var user User
	if err := conn.Where("email = ?", "owner@example.com").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.IsAdmin() {
		t.Fatalf("expected admin role, got %q", user.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret1")) != nil {
		t.Fatalf("password was not hashed with bcrypt")
	}

	if err := conn.Model(&user).Update("role", RoleUser).Error; err != nil {
		t.Fatalf("demote: %v", err)
	}
	created, err = EnsureAdmin(conn, "owner@example.com", "another-password")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if created {
		t.Fatalf("expected existing user to be promoted, not recreated")
	}

	var reloaded User
	if err := conn.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsAdmin() {
		t.Fatalf("expected promotion to admin")
	}
	if bcrypt.CompareHashAndPassword([]byte(reloaded.Password), []byte("secret1")) != nil {
		t.Fatalf("existing password must be kept")
	}
}

func TestDesignWorkGetsUUID(t *testing.T) {
	conn, err := Open(fmt.Sprintf("file:db-test-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	work := DesignWork{Title: "Logo", Category: "Branding", Image: "brand-identity", Height: "tall"}
	if err := conn.Create(&work).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(work.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", work.ID)
	}
}
