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

// Package cli implements the passkeyd command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// configFile is the path to the YAML configuration file
	configFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "passkeyd",
	Short: "passkeyd - WebAuthn passkey authentication server",
	Long: `passkeyd is a passwordless authentication server built on WebAuthn.
It issues registration and login challenges, verifies authenticator
attestations and assertions, and stores credentials in memory or Postgres.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (defaults apply when omitted)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
