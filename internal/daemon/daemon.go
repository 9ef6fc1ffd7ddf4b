// Package daemon provides the background process that keeps local data
// and the remote backend converged.
//
// The daemon:
// 1. Monitors network reachability and triggers a drain on recovery
// 2. Watches the capture inbox and ingests dropped media
// 3. Drains the outbox on a periodic interval
// 4. Periodically reconciles remote state into the local store
// 5. Optionally serves the monitoring dashboard
// 6. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fieldscope/fieldscope/internal/capture"
	"github.com/fieldscope/fieldscope/internal/dashboard"
	"github.com/fieldscope/fieldscope/internal/reachability"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
	syncpkg "github.com/fieldscope/fieldscope/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to trigger a drain regardless of other
	// triggers. Recovery from transient per-item failures depends on it.
	SyncInterval time.Duration

	// ReconcileInterval is how often to pull remote state into the
	// local store.
	ReconcileInterval time.Duration

	// Reachability configures the network monitor. nil uses defaults.
	Reachability *reachability.Config

	// Capture configures the inbox watcher. nil disables ingestion.
	Capture *capture.Config

	// DashboardPort serves the monitoring dashboard when non-zero.
	DashboardPort int

	// MaxRetries caps attempts per outbox item (default sync.DefaultMaxRetries).
	MaxRetries int

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:      time.Minute,
		ReconcileInterval: 5 * time.Minute,
		MaxRetries:        syncpkg.DefaultMaxRetries,
		Logger:            log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates the sync engine, reachability monitor, capture
// watcher, reconciler and dashboard.
type Daemon struct {
	store      *store.Store
	engine     *syncpkg.Engine
	reconciler *syncpkg.Reconciler
	monitor    *reachability.Monitor
	watcher    *capture.Watcher
	dash       *dashboard.Server
	config     *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon wired against the given store and remote client.
//
// Use Start() to begin operation.
func New(st *store.Store, client remote.Client, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = time.Minute
	}
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = 5 * time.Minute
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = syncpkg.DefaultMaxRetries
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		store:  st,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	var onEvent syncpkg.EventFunc
	if config.DashboardPort > 0 {
		dashCfg := dashboard.DefaultConfig()
		dashCfg.Port = config.DashboardPort
		dashCfg.Logger = config.Logger
		d.dash = dashboard.NewServer(dashCfg)
		handler := dashboard.NewHandler(d.dash, st, config.MaxRetries, config.Logger)
		onEvent = handler.OnEvent
	}

	// Monitor is created before the engine so the engine can consult
	// its live state through the Reachable hook.
	d.monitor = reachability.NewMonitor(config.Reachability, func() {
		config.Logger.Println("Network recovered, triggering sync")
		d.engine.TriggerSync(d.ctx)
	})

	d.engine = syncpkg.New(syncpkg.Config{
		Store:      st,
		Remote:     client,
		Reachable:  d.monitor.IsReachable,
		MaxRetries: config.MaxRetries,
		OnEvent:    onEvent,
	})

	d.reconciler = syncpkg.NewReconciler(st, client, nil)
	if onEvent != nil {
		d.reconciler.SetEventFunc(onEvent)
	}

	if config.Capture != nil {
		watcher, err := capture.New(st, config.Capture, func(photoID string) {
			if d.monitor.IsReachable() {
				d.engine.TriggerSync(d.ctx)
			}
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create capture watcher: %w", err)
		}
		d.watcher = watcher
	}

	return d, nil
}

// Engine returns the daemon's sync engine, for status queries and
// manual triggers.
func (d *Daemon) Engine() *syncpkg.Engine {
	return d.engine
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Restore persisted session state
// 2. Start the reachability monitor and capture watcher
// 3. Drain the outbox and reconcile on periodic intervals
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.engine.Restore(d.ctx); err != nil {
		return fmt.Errorf("failed to restore sync state: %w", err)
	}

	if d.dash != nil {
		if err := d.dash.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		d.config.Logger.Printf("Dashboard on %s", d.dash.GetAddr())
	}

	d.monitor.Start(d.ctx)

	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start capture watcher: %w", err)
		}
	}

	d.wg.Add(2)
	go d.syncLoop()
	go d.reconcileLoop()

	// Drain whatever accumulated while the daemon was down
	d.engine.TriggerSync(d.ctx)

	// Wait for shutdown
	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	// Signal shutdown
	d.cancel()

	d.monitor.Stop()
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.dash != nil {
		if err := d.dash.Stop(); err != nil {
			d.config.Logger.Printf("Error stopping dashboard: %v", err)
		}
	}

	// Wait for goroutines to finish
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// syncLoop periodically drains the outbox.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.engine.TriggerSync(d.ctx)
		}
	}
}

// reconcileLoop periodically pulls remote state into the local store.
func (d *Daemon) reconcileLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if !d.monitor.IsReachable() {
				continue
			}
			if err := d.reconciler.Run(d.ctx); err != nil {
				d.config.Logger.Printf("Reconcile error: %v", err)
			}
		}
	}
}
