// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/server"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// serveCmd starts the passkey HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey server",
	Long: `Start the HTTP server that issues WebAuthn challenges and
verifies registration and authentication ceremonies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(configFile)
		if err != nil {
			return err
		}

		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			return err
		}

		if cfg.Metrics.Enabled {
			metrics.StartResourceCollector(ctx, 30*time.Second)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}

		return nil
	},
}
