package main

import (
	"fmt"

	"github.com/spf13/cobra"

	syncpkg "github.com/fieldscope/fieldscope/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the outbox once",
	Long: `Drain the pending outbox once, pushing queued local changes to the
remote backend.

Items are processed highest-priority first (critical, high, normal, low),
oldest first within a priority. One failing item does not stop the drain;
it is retried on the next run, and records that exhaust their retry
budget are flagged failed (see 'fieldscope retry').

Pass --reconcile to also pull remote state into the local store after
the drain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reconcile, _ := cmd.Flags().GetBool("reconcile")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newRemoteClient()
		if err != nil {
			return err
		}

		engine := syncpkg.New(syncpkg.Config{
			Store:      st,
			Remote:     client,
			MaxRetries: cfg.Sync.MaxRetries,
			Logger:     newLogger("[sync] "),
		})
		if err := engine.Restore(cmd.Context()); err != nil {
			return fmt.Errorf("failed to restore sync state: %w", err)
		}

		engine.TriggerSync(cmd.Context())

		status := engine.Status()
		if status.LastError != "" {
			return fmt.Errorf("sync failed: %s", status.LastError)
		}

		fmt.Printf("Sync complete, %d items still pending\n", status.PendingCount)

		if reconcile {
			r := syncpkg.NewReconciler(st, client, newLogger("[reconcile] "))
			if err := r.Run(cmd.Context()); err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			fmt.Println("Reconcile complete")
		}

		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("reconcile", false, "Pull remote state after draining")

	rootCmd.AddCommand(syncCmd)
}
