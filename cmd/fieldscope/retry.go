package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-queue records that exhausted their retry budget",
	Long: `Reset the retry count on outbox items that hit the retry cap and flip
their records from failed back to pending.

The items never left the queue; this makes them eligible for the next
drain again. Run 'fieldscope sync' (or let the daemon's next interval
fire) to attempt them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ResetExhausted(cmd.Context(), cfg.Sync.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to reset exhausted items: %w", err)
		}

		if n == 0 {
			fmt.Println("No exhausted items")
			return nil
		}
		fmt.Printf("Re-queued %d items\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
