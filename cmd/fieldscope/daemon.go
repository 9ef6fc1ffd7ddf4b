package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldscope/fieldscope/internal/capture"
	"github.com/fieldscope/fieldscope/internal/daemon"
	"github.com/fieldscope/fieldscope/internal/reachability"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the background sync daemon.

The daemon keeps local data and the remote backend converged:
- Drains the outbox when the network recovers and on a periodic interval
- Watches the capture inbox and ingests dropped media files
- Periodically reconciles remote state into the local store
- Optionally serves a WebSocket dashboard for monitoring

Example usage:
  fieldscope daemon                  # Run with configured settings
  fieldscope daemon --dashboard      # Also serve the monitoring dashboard

The daemon runs until interrupted (Ctrl+C or SIGTERM) and shuts down
gracefully, letting any in-flight sync item finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newRemoteClient()
		if err != nil {
			return err
		}

		logger := newLogger("[daemon] ")

		reachCfg := reachability.DefaultConfig()
		reachCfg.ProbeAddr = cfg.Sync.ProbeAddr
		reachCfg.Logger = newLogger("[reachability] ")

		dcfg := &daemon.Config{
			SyncInterval:      cfg.Sync.Interval,
			ReconcileInterval: cfg.Sync.ReconcileInterval,
			MaxRetries:        cfg.Sync.MaxRetries,
			Reachability:      reachCfg,
			Logger:            logger,
		}

		if cfg.Capture.Enabled {
			capCfg := capture.DefaultConfig(cfg.InboxDir(), cfg.MediaDir())
			capCfg.DefaultProjectID = cfg.Capture.DefaultProjectID
			capCfg.Logger = newLogger("[capture] ")
			dcfg.Capture = capCfg
		}

		if withDashboard || cfg.Dashboard.Enabled {
			dcfg.DashboardPort = cfg.Dashboard.Port
		}

		d, err := daemon.New(st, client, dcfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		fmt.Printf("Daemon started (db: %s)\n", cfg.DBPath())
		if dcfg.DashboardPort > 0 {
			fmt.Printf("Dashboard: http://localhost:%d\n", dcfg.DashboardPort)
		}
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Serve the WebSocket monitoring dashboard")

	rootCmd.AddCommand(daemonCmd)
}
