package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync queue and entity status",
	Long: `Show the local sync state: last successful sync, outbox queue depth,
and per-entity status counts.

Exhausted items are outbox entries whose record hit the retry cap;
they stay queued but are skipped until 'fieldscope retry' resets them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()

		lastSync, err := st.LastSyncAt(ctx)
		if err != nil {
			return fmt.Errorf("failed to read last sync time: %w", err)
		}
		pending, err := st.PendingCount(ctx, cfg.Sync.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to count pending items: %w", err)
		}
		exhausted, err := st.ExhaustedCount(ctx, cfg.Sync.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to count exhausted items: %w", err)
		}

		fmt.Println(ui.Header("Sync"))
		if lastSync.IsZero() {
			fmt.Printf("  %s never\n", ui.Label("last sync:"))
		} else {
			fmt.Printf("  %s %s\n", ui.Label("last sync:"), lastSync.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("  %s %d\n", ui.Label("queued:"), pending)
		fmt.Printf("  %s %d\n", ui.Label("exhausted:"), exhausted)

		fmt.Println()
		fmt.Println(ui.Header("Records"))
		types := []entity.Type{
			entity.TypeProject,
			entity.TypeFolder,
			entity.TypePhoto,
			entity.TypeComment,
			entity.TypeShareLink,
		}
		statuses := []entity.SyncStatus{
			entity.StatusPending,
			entity.StatusSyncing,
			entity.StatusSynced,
			entity.StatusFailed,
		}
		for _, typ := range types {
			fmt.Printf("  %s", ui.Label(string(typ)+":"))
			for _, status := range statuses {
				n, err := st.CountByStatus(ctx, typ, status)
				if err != nil {
					return fmt.Errorf("failed to count %s records: %w", typ, err)
				}
				if n > 0 {
					fmt.Printf(" %d %s", n, ui.Status(status))
				}
			}
			fmt.Println()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
