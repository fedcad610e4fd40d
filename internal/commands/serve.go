package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"timeclock/internal/database"
	"timeclock/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		created, err := database.EnsureAdmin(ctx, e.db, database.AdminSeed{
			Username: e.cfg.AdminUsername,
			Password: e.cfg.AdminPassword,
			Email:    e.cfg.AdminEmail,
		})
		switch {
		case errors.Is(err, database.ErrNoAdminPassword):
			e.logger.Warn("no admin user exists and ADMIN_PASSWORD is not set, skipping bootstrap")
		case err != nil:
			return err
		case created:
			e.logger.Info("bootstrap admin created", "username", e.cfg.AdminUsername)
		}

		if debug, _ := cmd.Flags().GetBool("debug"); !debug {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%s", e.cfg.ServerPort),
			Handler:           server.Build(e.cfg, e.db, e.clock, e.logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			e.logger.Info("starting server", "addr", srv.Addr, "timezone", e.cfg.Timezone)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		e.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("debug", false, "Run gin in debug mode")
}
