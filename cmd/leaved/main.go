/*
main.go - leaved entry point

PURPOSE:
  Runs the leave engine as an HTTP service and offers a few operator
  commands against the same database.

COMMANDS:
  leaved serve                          HTTP API with graceful shutdown
  leaved migrate                        Create or upgrade the SQLite schema
  leaved balance EMPLOYEE [--as-of D]   Print a derived balance
  leaved seed SCENARIO                  Load a demo scenario (resets requests)

CONFIGURATION:
  Environment variables, optionally from a .env file (see config/config.go).
  --db and --addr override LEAVE_DB_PATH and LEAVE_HTTP_ADDR.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close lock backend and database
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leaved",
	Short: "Vacation request lifecycle and balance engine",
	Long: `leaved validates vacation requests, routes them through PM and HR
approval, derives balances from approved history and prevents overlapping
absences within a team. Notification delivery is left to the caller.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides LEAVE_DB_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
