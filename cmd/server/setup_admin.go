package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/folio/internal/backend"
	"github.com/folio/internal/config"
	"github.com/folio/internal/db"
	"github.com/folio/internal/logger"
)

var (
	adminEmail    string
	adminPassword string
)

// setupAdminCmd creates the site administrator or promotes an existing user.
var setupAdminCmd = &cobra.Command{
	Use:   "setup-admin",
	Short: "Create or promote the site administrator",
	Long: `Creates a confirmed user with the given credentials and grants the admin
role. If the email is already registered the existing user is promoted.

Falls back to ADMIN_EMAIL and ADMIN_PASSWORD when the flags are omitted.

Example:
  folio setup-admin --email owner@example.com --password 's3cret!'`,
	RunE: runSetupAdmin,
}

func init() {
	setupAdminCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email")
	setupAdminCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password (min 6 characters)")
	rootCmd.AddCommand(setupAdminCmd)
}

func runSetupAdmin(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment())

	email := strings.TrimSpace(adminEmail)
	if email == "" {
		email = cfg.AdminEmail
	}
	password := adminPassword
	if password == "" {
		password = cfg.AdminPassword
	}
	if email == "" || password == "" {
		return fmt.Errorf("--email and --password are required")
	}

	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	services, err := backend.Build(cmd.Context(), cfg, db.DB)
	if err != nil {
		return err
	}
	defer services.Close()

	result, err := services.Provisioner.EnsureAdmin(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("setup admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (user %s)\n", result.Message, result.UserID)
	return nil
}
