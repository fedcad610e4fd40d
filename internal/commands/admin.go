package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"timeclock/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", e.cfg.DBDriver)
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the bootstrap administrator if none exists",
	Long: `Create the bootstrap administrator if no admin account exists yet.

Flags override ADMIN_USERNAME, ADMIN_PASSWORD and ADMIN_EMAIL.

Examples:
  timeclock create-admin --password s3cret
  timeclock create-admin --username boss --email boss@example.com --password s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		seed := database.AdminSeed{
			Username: e.cfg.AdminUsername,
			Password: e.cfg.AdminPassword,
			Email:    e.cfg.AdminEmail,
		}
		flags := cmd.Flags()
		if v, _ := flags.GetString("username"); v != "" {
			seed.Username = v
		}
		if v, _ := flags.GetString("password"); v != "" {
			seed.Password = v
		}
		if v, _ := flags.GetString("email"); v != "" {
			seed.Email = v
		}
		if v, _ := flags.GetString("full-name"); v != "" {
			seed.FullName = v
		}

		created, err := database.EnsureAdmin(cmd.Context(), e.db, seed)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintln(cmd.OutOrStdout(), "An admin user already exists, nothing to do")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created admin user %q\n", seed.Username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("username", "", "Admin username")
	createAdminCmd.Flags().String("password", "", "Admin password")
	createAdminCmd.Flags().String("email", "", "Admin email")
	createAdminCmd.Flags().String("full-name", "", "Admin full name")
}
