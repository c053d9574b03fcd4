// Package supervisor implements the child-process lifecycle manager:
// spawn, restart-with-backoff, ring-buffered logs, and manual-stop
// suppression for each App with a start command.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/logging"
)

// Supervisor owns one child per supervised host.
type Supervisor struct {
	mu       sync.RWMutex
	children map[string]*child
	bus      *eventbus.Bus
	log      interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
		Error(msg interface{}, keyvals ...interface{})
	}
}

// New constructs a Supervisor publishing lifecycle events on bus.
func New(bus *eventbus.Bus) *Supervisor {
	return &Supervisor{
		children: make(map[string]*child),
		bus:      bus,
		log:      logging.For("supervisor"),
	}
}

// Sync reconciles the supervisor's child set against the given apps:
// supervised apps are registered (existing children are updated in
// place), and children for apps no longer present or no longer supervised
// are force-stopped and removed.
func (s *Supervisor) Sync(apps []domain.App) {
	wanted := make(map[string]domain.App, len(apps))
	for _, a := range apps {
		if a.IsSupervised() {
			wanted[domain.CanonicalHost(a.Host)] = a
		}
	}

	s.mu.Lock()
	var toRemove []string
	for host := range s.children {
		if _, ok := wanted[host]; !ok {
			toRemove = append(toRemove, host)
		}
	}
	s.mu.Unlock()

	for _, host := range toRemove {
		s.Remove(host)
	}

	for host, app := range wanted {
		s.mu.Lock()
		c, exists := s.children[host]
		if !exists {
			c = newChild(host, app, s.handleExit, s.handleLog)
			s.children[host] = c
		} else {
			c.update(app)
		}
		s.mu.Unlock()
		if !exists {
			s.bus.Publish(domain.Event{Kind: domain.EventAppAdded, Host: host, Data: app})
		} else {
			s.bus.Publish(domain.Event{Kind: domain.EventAppUpdated, Host: host, Data: app})
		}
	}
}

// Start spawns host's child. No-op if already running.
func (s *Supervisor) Start(host string) error {
	host = domain.CanonicalHost(host)
	c := s.get(host)
	if c == nil {
		return fmt.Errorf("%s: %w", host, ErrNotSupervised)
	}
	if err := c.start(s.portInUseByOther(host)); err != nil {
		return err
	}
	s.bus.Publish(domain.Event{Kind: domain.EventAppStart, Host: host})
	return nil
}

// Stop cancels any pending restart and force-stops host's child.
func (s *Supervisor) Stop(host string) error {
	host = domain.CanonicalHost(host)
	c := s.get(host)
	if c == nil {
		return fmt.Errorf("%s: %w", host, ErrNotSupervised)
	}
	c.cancelPendingRestart()
	c.stop()
	s.bus.Publish(domain.Event{Kind: domain.EventAppStop, Host: host})
	return nil
}

// Restart stops host's child, then schedules a delayed start.
func (s *Supervisor) Restart(host string) error {
	if err := s.Stop(host); err != nil {
		return err
	}
	c := s.get(host)
	if c == nil {
		return fmt.Errorf("%s: %w", host, ErrNotSupervised)
	}
	c.scheduleRestart(restartBaseDelay, func() {
		if err := s.Start(host); err != nil {
			s.log.Warn("restart failed", "host", host, "error", err)
		}
	})
	return nil
}

// Remove force-stops and forgets host's child entirely.
func (s *Supervisor) Remove(host string) {
	host = domain.CanonicalHost(host)
	s.mu.Lock()
	c, ok := s.children[host]
	if ok {
		delete(s.children, host)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	c.cancelPendingRestart()
	c.stop()
	s.bus.Publish(domain.Event{Kind: domain.EventAppRemoved, Host: host})
}

// StopAll force-stops every supervised child without removing them from
// the supervisor, used on process shutdown.
func (s *Supervisor) StopAll() {
	s.mu.RLock()
	hosts := make([]string, 0, len(s.children))
	for host := range s.children {
		hosts = append(hosts, host)
	}
	s.mu.RUnlock()

	for _, host := range hosts {
		c := s.get(host)
		if c == nil {
			continue
		}
		c.cancelPendingRestart()
		c.stop()
	}
}

// Status returns host's current child state.
func (s *Supervisor) Status(host string) (domain.ChildStatus, bool) {
	c := s.get(domain.CanonicalHost(host))
	if c == nil {
		return domain.ChildStatus{}, false
	}
	return c.status(), true
}

// IsRunning reports whether host's child is currently running, consulted
// by the proxy's readiness gate.
func (s *Supervisor) IsRunning(host string) bool {
	c := s.get(domain.CanonicalHost(host))
	return c != nil && c.isRunning()
}

// Logs returns the buffered log lines for host starting at fromIndex.
func (s *Supervisor) Logs(host string, fromIndex int) []domain.LogLine {
	c := s.get(domain.CanonicalHost(host))
	if c == nil {
		return nil
	}
	return c.logSnapshot(fromIndex)
}

func (s *Supervisor) get(host string) *child {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.children[host]
}

// portInUseByOther enforces the port-conflict check: no other *running*
// app may already own the same TCP port.
func (s *Supervisor) portInUseByOther(excludeHost string) func(port int) bool {
	return func(port int) bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for host, c := range s.children {
			if host == excludeHost {
				continue
			}
			if !c.isRunning() {
				continue
			}
			c.mu.Lock()
			p := c.app.Port
			c.mu.Unlock()
			if p != nil && *p == port {
				return true
			}
		}
		return false
	}
}

func (s *Supervisor) handleExit(host string, exitCode int, manual, willRestart bool, restartIn time.Duration) {
	s.bus.Publish(domain.Event{
		Kind: domain.EventAppExit,
		Host: host,
		Data: domain.ExitPayload{Code: exitCode, Manual: manual, WillRestart: willRestart, RestartIn: restartIn},
	})

	if !willRestart {
		return
	}
	c := s.get(host)
	if c == nil {
		return
	}
	c.scheduleRestart(restartIn, func() {
		if err := s.Start(host); err != nil {
			s.log.Warn("autorestart failed", "host", host, "error", err)
		}
	})
}

func (s *Supervisor) handleLog(host string, line domain.LogLine) {
	s.bus.Publish(domain.Event{Kind: domain.EventAppLog, Host: host, Data: line})
}
