// Package connectivity watches the network link and tells the sync
// engine when the device goes online or offline.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober checks whether the backend is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes with a HEAD request against a lightweight endpoint.
type HTTPProber struct {
	client *http.Client
	url    string
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

var _ Prober = (*HTTPProber)(nil)

func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

// Callback is invoked on debounced transitions. It runs on the monitor
// goroutine and must only record state; long work belongs elsewhere.
type Callback func(online bool)

// Monitor polls the prober and publishes debounced online/offline
// transitions. A single flipped probe never produces a transition; the
// new state must hold for debounceCount consecutive probes.
type Monitor struct {
	prober        Prober
	interval      time.Duration
	debounceCount int
	logger        *slog.Logger

	mu        sync.RWMutex
	online    bool
	streak    int
	callbacks []Callback

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		prober:        prober,
		interval:      interval,
		debounceCount: 2,
		logger:        logger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// OnChange registers a transition callback. Must be called before Start.
func (m *Monitor) OnChange(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// IsOnline reports the current debounced state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start begins polling. The first probe runs immediately and seeds the
// state without firing callbacks.
func (m *Monitor) Start(ctx context.Context) {
	seed := m.prober.Probe(ctx)
	m.mu.Lock()
	m.online = seed
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.observe(m.prober.Probe(ctx))
		}
	}
}

// observe feeds one probe result into the debouncer.
func (m *Monitor) observe(online bool) {
	m.mu.Lock()

	if online == m.online {
		m.streak = 0
		m.mu.Unlock()
		return
	}

	m.streak++
	if m.streak < m.debounceCount {
		m.mu.Unlock()
		return
	}

	m.online = online
	m.streak = 0
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", slog.Bool("online", online))
	for _, cb := range callbacks {
		cb(online)
	}
}
