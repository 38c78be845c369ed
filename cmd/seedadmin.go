/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskdeck/apiserver/config"
	"github.com/taskdeck/apiserver/internal/db"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// seedAdminCmd creates the first-boot admin account from ADMIN_EMAIL,
// ADMIN_NAME, and ADMIN_PASSWORD. It is idempotent: an existing account
// with the configured email is left untouched.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if strings.TrimSpace(cfg.Admin.Password) == "" {
			return errors.New("ADMIN_PASSWORD is required")
		}

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		users := store.NewUserRepository(dbConn)
		email := strings.ToLower(strings.TrimSpace(cfg.Admin.Email))

		if _, err := users.GetByEmail(cmd.Context(), email); err == nil {
			fmt.Printf("admin account %s already exists\n", email)
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check admin account: %w", err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		admin, err := users.Create(cmd.Context(), types.User{
			Email:        email,
			Name:         cfg.Admin.Name,
			Role:         types.RoleAdmin,
			PasswordHash: string(hashed),
		})
		if err != nil {
			return fmt.Errorf("create admin account: %w", err)
		}

		fmt.Printf("created admin account %s (id %d)\n", admin.Email, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}
