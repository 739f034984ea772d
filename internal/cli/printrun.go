package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/me/armada/internal/store"
	"github.com/spf13/cobra"
)

func newPrintRunCmd() *cobra.Command {
	var dbPath string
	var runUUID string

	cmd := &cobra.Command{
		Use:   "print-run",
		Short: "Print one archived solver run",
		Long:  "Looks up a CPU-limited run in the run archive and prints its timing, exit state, and captured output.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if dbPath == "" {
				return fmt.Errorf("--database is required")
			}
			id, err := uuid.Parse(runUUID)
			if err != nil {
				return fmt.Errorf("bad run uuid: %w", err)
			}

			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no run %s", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", run.UUID)
			fmt.Fprintf(out, "started:       %s\n", run.Started.Format(time.RFC3339))
			fmt.Fprintf(out, "usage elapsed: %s\n", run.UsageElapsed)
			fmt.Fprintf(out, "proc elapsed:  %s\n", run.ProcElapsed)
			fmt.Fprintf(out, "cutoff:        %s\n", run.Cutoff)
			if run.ExitStatus != nil {
				fmt.Fprintf(out, "exit status:   %d\n", *run.ExitStatus)
			}
			if run.ExitSignal != nil {
				fmt.Fprintf(out, "exit signal:   %d\n", *run.ExitSignal)
			}
			fmt.Fprintf(out, "stdout (%d bytes):\n%s\n", len(run.Stdout), run.Stdout)
			fmt.Fprintf(out, "stderr (%d bytes):\n%s\n", len(run.Stderr), run.Stderr)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "database", "", "Run archive database (default from config)")
	cmd.Flags().StringVar(&runUUID, "run-uuid", "", "UUID of the archived run")
	cmd.MarkFlagRequired("run-uuid")

	return cmd
}
