// Package controlplane implements the mutation API and bootstrap sequence:
// the stable surface an admin collaborator uses to read and mutate the
// App set, backed by the same event bus the host router and certificate
// orchestrator subscribe to.
package controlplane

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/bnema/gatewayd/internal/certorch"
	"github.com/bnema/gatewayd/internal/config"
	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/healthprobe"
	"github.com/bnema/gatewayd/internal/logging"
	"github.com/bnema/gatewayd/internal/router"
	"github.com/bnema/gatewayd/internal/supervisor"
)

// Plane wires the config store to the router, supervisor, health prober,
// and certificate orchestrator, and is the single writer of the on-disk
// config file: persisted config and in-memory map agree after every
// committed mutation.
type Plane struct {
	store      *config.Store
	bus        *eventbus.Bus
	router     *router.Router
	supervisor *supervisor.Supervisor
	health     *healthprobe.Prober
	certs      *certorch.Orchestrator

	adminToken string

	mu   sync.Mutex
	file *config.File

	log interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// New constructs a Plane. adminToken is the credential Authorized checks
// callers of the mutation API against; the mutation methods themselves do
// not check it. An empty token disables the check, for local/dev use.
func New(store *config.Store, bus *eventbus.Bus, r *router.Router, sup *supervisor.Supervisor, health *healthprobe.Prober, certs *certorch.Orchestrator, adminToken string) *Plane {
	return &Plane{
		store:      store,
		bus:        bus,
		router:     r,
		supervisor: sup,
		health:     health,
		certs:      certs,
		adminToken: adminToken,
		log:        logging.For("controlplane"),
	}
}

// Authorized reports whether token may call the mutation API. Compared in
// constant time since this gates a bearer credential.
func (p *Plane) Authorized(token string) bool {
	if p.adminToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.adminToken)) == 1
}

// Bootstrap loads the config file, pushes the initial App set to the
// router, supervisor, and health prober, starts the certificate
// orchestrator's cache sweeper, and auto-starts every non-disabled
// supervised app.
func (p *Plane) Bootstrap(ctx context.Context) error {
	p.mu.Lock()
	f, err := p.store.Load()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("load config: %w", err)
	}
	p.file = f
	apps := append([]domain.App(nil), f.Apps...)
	p.mu.Unlock()

	p.certs.Subscribe(p.bus)
	p.certs.Start(ctx)

	p.applySync(apps)

	for _, a := range apps {
		if a.IsSupervised() && !a.Disabled {
			if err := p.supervisor.Start(domain.CanonicalHost(a.Host)); err != nil {
				p.log.Warn("auto-start failed", "host", a.Host, "error", err)
			}
		}
	}
	return nil
}

// Snapshot combines routing, supervision, and health state for every
// configured app so a freshly-connected admin collaborator can paint
// initial state.
func (p *Plane) Snapshot() []domain.AppStatus {
	p.mu.Lock()
	apps := append([]domain.App(nil), p.file.Apps...)
	p.mu.Unlock()

	out := make([]domain.AppStatus, 0, len(apps))
	for _, a := range apps {
		host := domain.CanonicalHost(a.Host)
		status := domain.AppStatus{App: a}
		if cs, ok := p.supervisor.Status(host); ok {
			status.Child = cs
		}
		if hs, ok := p.health.LastResult(host); ok {
			status.Health = &hs
		}
		out = append(out, status)
	}
	return out
}

// AddApp appends a new app, persists, and syncs the router/supervisor/
// health prober, enforcing at most one app per host.
func (p *Plane) AddApp(app domain.App) error {
	app.Host = domain.CanonicalHost(app.Host)

	p.mu.Lock()
	for _, existing := range p.file.Apps {
		if domain.CanonicalHost(existing.Host) == app.Host {
			p.mu.Unlock()
			return fmt.Errorf("%s: %w", app.Host, ErrDuplicateHost)
		}
	}
	p.file.Apps = append(p.file.Apps, app)
	apps, err := p.persistLocked()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.applySync(apps)
	return nil
}

// UpdateApp replaces the app record matching app.Host in place.
func (p *Plane) UpdateApp(app domain.App) error {
	app.Host = domain.CanonicalHost(app.Host)

	p.mu.Lock()
	idx := -1
	for i, existing := range p.file.Apps {
		if domain.CanonicalHost(existing.Host) == app.Host {
			idx = i
			break
		}
	}
	if idx == -1 {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", app.Host, ErrAppNotFound)
	}
	p.file.Apps[idx] = app
	apps, err := p.persistLocked()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.applySync(apps)
	return nil
}

// RemoveApp deletes host's app record, persists, and force-stops its
// supervised child.
func (p *Plane) RemoveApp(host string) error {
	host = domain.CanonicalHost(host)

	p.mu.Lock()
	idx := -1
	for i, existing := range p.file.Apps {
		if domain.CanonicalHost(existing.Host) == host {
			idx = i
			break
		}
	}
	if idx == -1 {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", host, ErrAppNotFound)
	}
	p.file.Apps = append(p.file.Apps[:idx], p.file.Apps[idx+1:]...)
	apps, err := p.persistLocked()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.supervisor.Remove(host)
	p.health.Cancel(host)
	p.applySync(apps)
	return nil
}

// StartApp, StopApp, and RestartApp delegate to the supervisor, the
// mutation surface for lifecycle control without a config change.
func (p *Plane) StartApp(host string) error   { return p.supervisor.Start(host) }
func (p *Plane) StopApp(host string) error    { return p.supervisor.Stop(host) }
func (p *Plane) RestartApp(host string) error { return p.supervisor.Restart(host) }

// Logs returns host's buffered log lines starting at fromIndex.
func (p *Plane) Logs(host string, fromIndex int) []domain.LogLine {
	return p.supervisor.Logs(host, fromIndex)
}

// persistLocked saves p.file (caller holds p.mu) and returns the new App
// snapshot for the caller to push to the downstream components outside
// the lock.
func (p *Plane) persistLocked() ([]domain.App, error) {
	if err := p.store.Save(p.file); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	return append([]domain.App(nil), p.file.Apps...), nil
}

// applySync pushes the current App set to the router, supervisor, and
// health prober, then publishes a config-saved event.
func (p *Plane) applySync(apps []domain.App) {
	p.router.Replace(apps)
	p.supervisor.Sync(apps)
	p.health.Sync(apps)
	p.bus.Publish(domain.Event{Kind: domain.EventConfigSave})
}
