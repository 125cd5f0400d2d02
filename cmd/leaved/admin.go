package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(seedCmd)

	balanceCmd.Flags().String("as-of", "", "Date inside the work year to report (YYYY-MM-DD, default today)")
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the SQLite schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := appFromFlags(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", a.cfg.DB.Path)
		return nil
	},
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance EMPLOYEE_ID",
	Short: "Print an employee's derived balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("as-of")
		var asOf generic.TimePoint
		if raw != "" {
			d, err := generic.ParseDate(raw)
			if err != nil {
				return fmt.Errorf("--as-of: %w", err)
			}
			asOf = d
		}

		a, err := appFromFlags(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		bal, err := a.coordinator.Balance(cmd.Context(), leave.EmployeeID(args[0]), asOf)
		if leave.IsNotFound(err) {
			return fmt.Errorf("no employee %q", args[0])
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"employee_id":     bal.EmployeeID,
			"annual_quota":    bal.AnnualQuota.IntPart(),
			"used":            bal.Used.IntPart(),
			"remaining":       bal.Remaining.IntPart(),
			"work_year_start": bal.WorkYear.Start.String(),
			"work_year_end":   bal.WorkYear.End.String(),
		})
	},
}

// ─── seed ───────────────────────────────────────────────────────────────────

var seedCmd = &cobra.Command{
	Use:       "seed SCENARIO",
	Short:     "Load a demo scenario (clears requests and audit)",
	Long:      "Load a demo scenario. Available: " + strings.Join(api.ScenarioIDs(), ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: api.ScenarioIDs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromFlags(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		today := generic.DateOf(a.coordinator.Now())
		if err := api.LoadScenario(cmd.Context(), a.store, args[0], today); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded scenario %s into %s\n", args[0], a.cfg.DB.Path)
		return nil
	},
}

func appFromFlags(cmd *cobra.Command) (*app, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	cfg, err := loadConfig(dbPath, "")
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}
