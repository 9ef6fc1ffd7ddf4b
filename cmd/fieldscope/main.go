// Command fieldscope is the local-first field documentation sync tool.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fieldscope/fieldscope/internal/config"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fieldscope",
	Short: "Offline-first sync for field documentation",
	Long: `fieldscope keeps field documentation (projects, folders, photos,
comments, share links) in a local SQLite store and synchronizes it with
the remote backend when the network allows.

All edits land locally first and are queued in a durable outbox; the
sync engine drains the queue when connectivity returns, retrying
transient failures and flagging records that exhaust their retry budget.

Common usage:
  fieldscope daemon              # Run the background sync daemon
  fieldscope sync                # Drain the outbox once
  fieldscope status              # Show queue and entity status
  fieldscope retry               # Re-queue failed records`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fieldscope.yaml or ~/.fieldscope/fieldscope.yaml)")
}

// openStore opens the SQLite store at the configured path, creating the
// data directory and schema if needed.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	st.SetLogger(newLogger("[store] "))
	if err := st.InitSchema(cmd.Context()); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}

// newRemoteClient builds the HTTP client from config. The API token is
// required for any command that talks to the backend.
func newRemoteClient() (remote.Client, error) {
	if cfg.API.Token == "" {
		return nil, fmt.Errorf("api token not configured (set api.token or FIELDSCOPE_API_TOKEN)")
	}
	return remote.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, nil), nil
}

// newLogger returns a logger writing to the configured rotating log
// file, or stderr when no file is configured.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
