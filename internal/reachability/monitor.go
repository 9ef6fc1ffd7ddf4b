// Package reachability observes network availability and signals the
// unreachable-to-reachable transition.
//
// The monitor is purely a trigger source: it never retries anything
// itself. It probes on an interval and fires a callback exactly once per
// transition to reachable; repeated probes confirming the same state are
// debounced so interface flaps don't multiply into duplicate drains.
package reachability

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Config holds configuration for the Monitor.
type Config struct {
	// ProbeAddr is the host:port dialed to test connectivity.
	ProbeAddr string

	// Probe overrides the default TCP dial probe. Used in tests.
	Probe func(ctx context.Context) bool

	// Interval is how often to probe (default 15s).
	Interval time.Duration

	// Debounce is the minimum gap between two became-reachable
	// notifications (default 2s).
	Debounce time.Duration

	// Logger for monitor activity. nil means a default stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeAddr: "1.1.1.1:443",
		Interval:  15 * time.Second,
		Debounce:  2 * time.Second,
		Logger:    log.New(os.Stderr, "[reachability] ", log.LstdFlags),
	}
}

// Monitor probes connectivity and emits edge-triggered became-reachable
// notifications.
type Monitor struct {
	probe    func(ctx context.Context) bool
	interval time.Duration
	debounce time.Duration
	logger   *log.Logger

	onReachable func()

	mu        sync.Mutex
	reachable bool
	lastFire  time.Time
	running   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. onReachable is invoked on each
// unreachable-to-reachable transition (debounced); it runs on the
// monitor's goroutine and should hand off quickly.
func NewMonitor(config *Config, onReachable func()) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[reachability] ", log.LstdFlags)
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}
	if config.Debounce <= 0 {
		config.Debounce = 2 * time.Second
	}

	probe := config.Probe
	if probe == nil {
		addr := config.ProbeAddr
		probe = func(ctx context.Context) bool {
			d := net.Dialer{Timeout: 3 * time.Second}
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return false
			}
			_ = conn.Close()
			return true
		}
	}

	return &Monitor{
		probe:       probe,
		interval:    config.Interval,
		debounce:    config.Debounce,
		logger:      config.Logger,
		onReachable: onReachable,
	}
}

// Start begins probing. The first probe runs immediately so IsReachable
// is meaningful right away. Returns after the loop goroutine is running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.check(ctx)

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts probing and waits for the loop goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// IsReachable returns the last observed reachability state.
func (m *Monitor) IsReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reachable
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe and fires the callback on the up transition.
func (m *Monitor) check(ctx context.Context) {
	up := m.probe(ctx)

	m.mu.Lock()
	wasUp := m.reachable
	m.reachable = up

	fire := false
	if up && !wasUp {
		// Edge triggered, once per transition; the debounce window
		// swallows flap-induced repeats.
		if time.Since(m.lastFire) >= m.debounce {
			m.lastFire = time.Now()
			fire = true
		}
	}
	m.mu.Unlock()

	if up != wasUp {
		if up {
			m.logger.Printf("Network became reachable")
		} else {
			m.logger.Printf("Network became unreachable")
		}
	}

	if fire && m.onReachable != nil {
		m.onReachable()
	}
}
