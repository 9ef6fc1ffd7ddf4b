package reachability

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// flipProbe is a controllable probe result.
type flipProbe struct {
	mu sync.Mutex
	up bool
}

func (p *flipProbe) set(up bool) {
	p.mu.Lock()
	p.up = up
	p.mu.Unlock()
}

func (p *flipProbe) probe(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.up
}

func testConfig(probe *flipProbe) *Config {
	return &Config{
		Probe:    probe.probe,
		Interval: 20 * time.Millisecond,
		Debounce: 10 * time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestMonitor_InitialProbe(t *testing.T) {
	probe := &flipProbe{up: true}

	m := NewMonitor(testConfig(probe), nil)
	m.Start(context.Background())
	defer m.Stop()

	// The first probe runs during Start, not an interval later.
	if !m.IsReachable() {
		t.Error("IsReachable() = false immediately after Start, want true")
	}
}

func TestMonitor_FiresOnUpTransition(t *testing.T) {
	probe := &flipProbe{up: false}

	var fired atomic.Int32
	m := NewMonitor(testConfig(probe), func() {
		fired.Add(1)
	})
	m.Start(context.Background())
	defer m.Stop()

	if m.IsReachable() {
		t.Fatal("IsReachable() = true while probe is down")
	}
	if n := fired.Load(); n != 0 {
		t.Fatalf("callback fired %d times while down, want 0", n)
	}

	probe.set(true)
	waitFor(t, func() bool { return fired.Load() == 1 },
		"callback did not fire on the up transition")

	// Staying up produces no further notifications.
	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("callback fired %d times while continuously up, want 1", n)
	}
}

func TestMonitor_DebouncesFlaps(t *testing.T) {
	probe := &flipProbe{up: false}

	var fired atomic.Int32
	config := testConfig(probe)
	// A debounce window far wider than the probe interval: rapid
	// down/up flaps inside it collapse to one notification.
	config.Debounce = 10 * time.Second

	m := NewMonitor(config, func() {
		fired.Add(1)
	})
	m.Start(context.Background())
	defer m.Stop()

	probe.set(true)
	waitFor(t, func() bool { return fired.Load() == 1 },
		"callback did not fire on the first up transition")

	for i := 0; i < 3; i++ {
		probe.set(false)
		waitFor(t, func() bool { return !m.IsReachable() }, "probe never observed down")
		probe.set(true)
		waitFor(t, func() bool { return m.IsReachable() }, "probe never observed up")
	}

	if n := fired.Load(); n != 1 {
		t.Errorf("callback fired %d times across flaps inside the debounce window, want 1", n)
	}
}

func TestMonitor_StopHaltsProbing(t *testing.T) {
	probe := &flipProbe{up: false}

	m := NewMonitor(testConfig(probe), nil)
	m.Start(context.Background())
	m.Stop()

	// No probe runs after Stop; the state stays frozen.
	probe.set(true)
	time.Sleep(60 * time.Millisecond)
	if m.IsReachable() {
		t.Error("IsReachable() = true after Stop, want the pre-stop state")
	}

	// Stop twice is safe.
	m.Stop()
}
