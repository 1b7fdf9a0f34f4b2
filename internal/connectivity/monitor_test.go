package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type scriptedProber struct {
	mu      sync.Mutex
	results []bool
	pos     int
}

func (p *scriptedProber) Probe(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.results) {
		return p.results[len(p.results)-1]
	}
	r := p.results[p.pos]
	p.pos++
	return r
}

func TestMonitorDebouncesSingleFlip(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []bool{true}}, time.Hour, testLogger())
	m.online = true

	var transitions []bool
	m.OnChange(func(online bool) { transitions = append(transitions, online) })

	// One offline probe between online probes must not transition.
	m.observe(false)
	assert.True(t, m.IsOnline())
	m.observe(true)
	assert.True(t, m.IsOnline())
	assert.Empty(t, transitions)
}

func TestMonitorTransitionsAfterConsecutiveProbes(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []bool{true}}, time.Hour, testLogger())
	m.online = true

	var transitions []bool
	m.OnChange(func(online bool) { transitions = append(transitions, online) })

	m.observe(false)
	m.observe(false)
	assert.False(t, m.IsOnline())
	assert.Equal(t, []bool{false}, transitions)

	m.observe(true)
	m.observe(true)
	assert.True(t, m.IsOnline())
	assert.Equal(t, []bool{false, true}, transitions)
}

func TestMonitorSeedsWithoutCallback(t *testing.T) {
	prober := &scriptedProber{results: []bool{true}}
	m := NewMonitor(prober, time.Hour, testLogger())

	fired := false
	m.OnChange(func(bool) { fired = true })

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	assert.True(t, m.IsOnline())
	assert.False(t, fired)

	cancel()
	// the loop exits on ctx cancellation; Stop would block on doneCh
	// only until then
	m.Stop()
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL, time.Second)
	assert.True(t, p.Probe(context.Background()))

	srv.Close()
	assert.False(t, p.Probe(context.Background()))
}

func TestHTTPProberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL, time.Second)
	assert.False(t, p.Probe(context.Background()))
}
