package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playreport/api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or inspect schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error {
			return r.Up(cmd.Context())
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error {
			return r.Down(cmd.Context())
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error {
			entries, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}
			if printStructured(entries) {
				return nil
			}

			t := newTable("VERSION", "NAME", "APPLIED", "APPLIED AT")
			for _, e := range entries {
				at := "-"
				if e.Applied {
					at = e.AppliedAt.Format(time.RFC3339)
				}
				t.AddRow(e.Version, e.Name, fmt.Sprint(e.Applied), at)
			}
			t.Flush()
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func withRunner(fn func(*migrations.Runner) error) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	db, err := e.database()
	if err != nil {
		return err
	}
	return fn(migrations.NewRunner(db.DB, migrations.Files(), e.log))
}
