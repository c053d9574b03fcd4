// Package domain holds the fixed record shapes shared across gatewayd's
// components: the App routing/supervision unit, child-process runtime
// state, health state, and the event envelope published on the control
// plane's event bus.
package domain

import "strings"

// Upstream is the explicit backend address for an App. Present/absent is
// modeled as a pointer on App rather than a sum type with reflection, per
// the "no reflective dispatch" design note.
type Upstream struct {
	Scheme             string `json:"scheme"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	RejectUnauthorized *bool  `json:"rejectUnauthorized,omitempty"`
}

// App is the routing and supervision unit, keyed by lowercased Host.
type App struct {
	Host             string    `json:"host"`
	AltNames         []string  `json:"altNames,omitempty"`
	PreserveHost     bool      `json:"preserveHost,omitempty"`
	Upstream         *Upstream `json:"upstream,omitempty"`
	Port             *int      `json:"port,omitempty"`
	StaticDir        string    `json:"staticDir,omitempty"`
	Cwd              string    `json:"cwd,omitempty"`
	Start            string    `json:"start,omitempty"`
	HealthURL        string    `json:"healthUrl,omitempty"`
	HealthIntervalMs int       `json:"healthIntervalMs,omitempty"`
	Disabled         bool      `json:"disabled,omitempty"`
	AutoRestart      *bool     `json:"autoRestart,omitempty"`
	AutoInstall      *bool     `json:"autoInstall,omitempty"`
}

// DefaultHealthIntervalMs is applied when HealthIntervalMs is unset.
const DefaultHealthIntervalMs = 15_000

// CanonicalHost lowercases and trims a trailing dot, the identity rule
// used everywhere a hostname is compared (spec design note: "never compare
// headers or SANs without case folding").
func CanonicalHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// IsSupervised reports whether the app has a configured start command and
// so is managed by the child supervisor, as opposed to being externally
// managed.
func (a App) IsSupervised() bool {
	return strings.TrimSpace(a.Start) != ""
}

// IsStatic reports whether the app serves a static directory rather than
// proxying to an upstream.
func (a App) IsStatic() bool {
	return a.StaticDir != ""
}

// ShouldAutoRestart reports the effective autoRestart value, default true.
func (a App) ShouldAutoRestart() bool {
	return a.AutoRestart == nil || *a.AutoRestart
}

// ShouldAutoInstall reports the effective autoInstall value, default true.
func (a App) ShouldAutoInstall() bool {
	return a.AutoInstall == nil || *a.AutoInstall
}

// EffectiveHealthIntervalMs returns HealthIntervalMs or the default.
func (a App) EffectiveHealthIntervalMs() int {
	if a.HealthIntervalMs > 0 {
		return a.HealthIntervalMs
	}
	return DefaultHealthIntervalMs
}

// RejectUnauthorizedOrDefault reports whether the proxy should verify the upstream's
// TLS certificate, default true (verify).
func (u Upstream) RejectUnauthorizedOrDefault() bool {
	return u.RejectUnauthorized == nil || *u.RejectUnauthorized
}
