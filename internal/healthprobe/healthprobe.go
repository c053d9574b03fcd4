// Package healthprobe implements the periodic readiness probe: one
// goroutine per app with a healthUrl, rescheduled whenever the probed URL
// or interval changes.
package healthprobe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/stephenafamo/kronika"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/logging"
)

// Prober owns one probing goroutine per host with a configured healthUrl.
type Prober struct {
	mu      sync.RWMutex
	entries map[string]*probeEntry
	bus     *eventbus.Bus
	client  *http.Client
	log     interface {
		Debug(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

type probeEntry struct {
	healthURL string
	interval  time.Duration
	cancel    context.CancelFunc

	mu    sync.RWMutex
	state domain.HealthState
}

// New constructs a Prober publishing health events on bus. client, if nil,
// defaults to one that follows at most one redirect.
func New(bus *eventbus.Bus, client *http.Client) *Prober {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Prober{
		entries: make(map[string]*probeEntry),
		bus:     bus,
		client:  client,
		log:     logging.For("healthprobe"),
	}
}

// defaultHTTPClient follows at most one redirect.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 2 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Sync reconciles probed hosts against the given apps: apps with a
// healthUrl are (re)scheduled when the URL or interval changed; apps
// without one, or no longer present, have their prober canceled.
func (p *Prober) Sync(apps []domain.App) {
	wanted := make(map[string]domain.App, len(apps))
	for _, a := range apps {
		if a.HealthURL != "" {
			wanted[domain.CanonicalHost(a.Host)] = a
		}
	}

	p.mu.Lock()
	var toRemove []string
	for host := range p.entries {
		if _, ok := wanted[host]; !ok {
			toRemove = append(toRemove, host)
		}
	}
	p.mu.Unlock()
	for _, host := range toRemove {
		p.Cancel(host)
	}

	for host, app := range wanted {
		interval := time.Duration(app.EffectiveHealthIntervalMs()) * time.Millisecond
		p.mu.RLock()
		existing, ok := p.entries[host]
		p.mu.RUnlock()

		if ok {
			existing.mu.RLock()
			unchanged := existing.healthURL == app.HealthURL && existing.interval == interval
			existing.mu.RUnlock()
			if unchanged {
				continue
			}
			p.Cancel(host)
		}
		p.schedule(host, app.HealthURL, interval)
	}
}

func (p *Prober) schedule(host, healthURL string, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	entry := &probeEntry{healthURL: healthURL, interval: interval, cancel: cancel}

	p.mu.Lock()
	p.entries[host] = entry
	p.mu.Unlock()

	go p.run(ctx, host, entry)
}

func (p *Prober) run(ctx context.Context, host string, entry *probeEntry) {
	p.probeOnce(host, entry)
	for range kronika.Every(ctx, time.Now().Add(entry.interval), entry.interval) {
		p.probeOnce(host, entry)
	}
}

func (p *Prober) probeOnce(host string, entry *probeEntry) {
	start := time.Now()
	state := domain.HealthState{LastCheckedAt: start}

	entry.mu.RLock()
	url := entry.healthURL
	entry.mu.RUnlock()

	resp, err := p.client.Get(url)
	state.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		state.Healthy = false
		state.Error = err.Error()
	} else {
		resp.Body.Close()
		state.StatusCode = resp.StatusCode
		state.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 400
	}

	entry.mu.Lock()
	entry.state = state
	entry.mu.Unlock()

	p.bus.Publish(domain.Event{Kind: domain.EventAppHealth, Host: host, Data: state})
	p.log.Debug("probed", "host", host, "healthy", state.Healthy, "latency_ms", state.LatencyMs)
}

// Cancel stops host's probing goroutine and forgets its state.
func (p *Prober) Cancel(host string) {
	host = domain.CanonicalHost(host)
	p.mu.Lock()
	entry, ok := p.entries[host]
	if ok {
		delete(p.entries, host)
	}
	p.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// LastResult returns host's most recent probe result, the accessor the
// readiness gate polls without blocking on event delivery. ok is false if
// host has no healthUrl configured, in which case it is always considered
// healthy.
func (p *Prober) LastResult(host string) (domain.HealthState, bool) {
	host = domain.CanonicalHost(host)
	p.mu.RLock()
	entry, ok := p.entries[host]
	p.mu.RUnlock()
	if !ok {
		return domain.HealthState{}, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.state, true
}
