// Package connectivity tracks whether the budget server is reachable.
//
// The monitor probes the server's health endpoint on an interval and
// exposes the last observation as a synchronous boolean plus a change
// notification channel. Consumers that gate work on connectivity (the
// sync engine, the record store's status computation) read Online()
// fresh each time instead of caching it.
package connectivity

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks reachability of the server. A nil error means online.
type ProbeFunc func(ctx context.Context) error

// Monitor is the connectivity signal.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *log.Logger

	online  atomic.Bool
	changes chan bool

	mu      sync.Mutex
	started bool
}

// Config holds monitor configuration.
type Config struct {
	// ProbeInterval is how often to re-check reachability (default: 15s).
	ProbeInterval time.Duration

	// Logger for monitor activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 15 * time.Second,
		Logger:        log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// NewMonitor creates a monitor around the given probe.
//
// The monitor starts out offline; call CheckNow or Start to establish
// the first observation.
func NewMonitor(probe ProbeFunc, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 15 * time.Second
	}

	return &Monitor{
		probe:    probe,
		interval: config.ProbeInterval,
		logger:   config.Logger,
		changes:  make(chan bool, 8),
	}
}

// Online returns the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Changes returns a channel that receives the new state whenever
// connectivity flips. The channel is buffered; if a consumer falls
// behind, intermediate flips are dropped.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// CheckNow runs one synchronous probe and returns the resulting state.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	err := m.probe(ctx)
	m.set(err == nil)
	return err == nil
}

// SetOnline overrides the observed state. Used for forced-offline mode
// and by tests; the next probe will overwrite it.
func (m *Monitor) SetOnline(online bool) {
	m.set(online)
}

// Start probes immediately and then on every interval tick until ctx is
// cancelled. It blocks; run it in a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// set records the state and emits a change notification on flips.
func (m *Monitor) set(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.logger.Printf("Connectivity regained")
	} else {
		m.logger.Printf("Connectivity lost")
	}

	select {
	case m.changes <- online:
	default:
	}
}
