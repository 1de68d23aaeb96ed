package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timeoff/internal/app/server"
	"timeoff/internal/domain/auth"
	"timeoff/internal/domain/staff"
	"timeoff/internal/platform/config"
	"timeoff/internal/platform/db"
)

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "timeoff",
		Short:         "Time-off request service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(logger),
		newMigrateCmd(),
		newTokenCmd(),
		newStaffCmd(logger),
	)
	return root
}

func newServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.New(ctx, config.Load(), logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			if cfg.Driver() == config.DriverSQLite {
				database, err := db.OpenSQLite(ctx, cfg.SQLitePath())
				if err != nil {
					return err
				}
				return database.Close()
			}
			pool, err := db.Connect(ctx, cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

// newTokenCmd mints a bearer token signed with JWT_SECRET, for local use.
func newTokenCmd() *cobra.Command {
	var userID, tenantID, roles string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			var roleList []string
			for _, role := range strings.Split(roles, ",") {
				if role = strings.TrimSpace(role); role != "" {
					roleList = append(roleList, role)
				}
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{UserID: userID, TenantID: tenantID, Roles: roleList}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID (uid claim)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (tid claim)")
	cmd.Flags().StringVar(&roles, "roles", "", "Comma-separated roles")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newStaffCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the staff directory",
	}
	cmd.AddCommand(newStaffAddCmd(logger))
	return cmd
}

func newStaffAddCmd(logger *slog.Logger) *cobra.Command {
	var member staff.StaffMember

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			app, err := server.New(ctx, config.Load(), logger)
			if err != nil {
				return err
			}
			defer app.Close()

			created, err := app.Staff.Create(ctx, member)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added staff member %d (%s)\n", created.ID, created.FullName())
			return nil
		},
	}

	cmd.Flags().StringVar(&member.TenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&member.UserID, "user", "", "User ID the member signs in as")
	cmd.Flags().StringVar(&member.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&member.LastName, "last", "", "Last name")
	cmd.Flags().StringVar(&member.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&member.Status, "status", staff.StatusActive, "active or inactive")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	return cmd
}
