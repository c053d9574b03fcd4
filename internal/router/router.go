// Package router implements the host-to-App lookup table, rebuilt
// whenever the supervisor/config layer publishes an app mutation event.
package router

import (
	"net"
	"sync"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/logging"
)

// Router is a case-insensitive host to App map. The zero value is not
// usable; construct with New.
type Router struct {
	mu   sync.RWMutex
	apps map[string]domain.App
	log  interface {
		Debug(msg interface{}, keyvals ...interface{})
	}
}

// New constructs an empty Router subscribed to bus's app mutation events.
func New(bus *eventbus.Bus) *Router {
	r := &Router{
		apps: make(map[string]domain.App),
		log:  logging.For("router"),
	}
	bus.Subscribe(domain.EventAppAdded, r.onUpsert)
	bus.Subscribe(domain.EventAppUpdated, r.onUpsert)
	bus.Subscribe(domain.EventAppRemoved, r.onRemove)
	return r
}

func (r *Router) onUpsert(e domain.Event) {
	app, ok := e.Data.(domain.App)
	if !ok {
		return
	}
	r.mu.Lock()
	r.apps[domain.CanonicalHost(app.Host)] = app
	r.mu.Unlock()
	r.log.Debug("host map updated", "host", app.Host)
}

func (r *Router) onRemove(e domain.Event) {
	r.mu.Lock()
	delete(r.apps, domain.CanonicalHost(e.Host))
	r.mu.Unlock()
	r.log.Debug("host map entry removed", "host", e.Host)
}

// Replace atomically swaps the entire app set, used at startup and on
// full config reload.
func (r *Router) Replace(apps []domain.App) {
	m := make(map[string]domain.App, len(apps))
	for _, a := range apps {
		m[domain.CanonicalHost(a.Host)] = a
	}
	r.mu.Lock()
	r.apps = m
	r.mu.Unlock()
}

// Lookup matches a request's Host header (port suffix stripped,
// case-insensitive) to its App.
func (r *Router) Lookup(hostHeader string) (domain.App, bool) {
	host := stripPort(hostHeader)
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[domain.CanonicalHost(host)]
	return a, ok
}

// Apps returns a snapshot of all routed apps, implementing
// certorch.AppSource.
func (r *Router) Apps() []domain.App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.App, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	return out
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
