// Package gatewayproxy implements the TLS listener and reverse proxy:
// SNI-routed TLS termination, a readiness gate backed by the health
// prober, static file serving, and response rewriting for proxied traffic.
package gatewayproxy

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/logging"
)

// HostRouter is the subset of router.Router the proxy depends on.
type HostRouter interface {
	Lookup(hostHeader string) (domain.App, bool)
}

// ChildRunner is the subset of supervisor.Supervisor the proxy depends on.
type ChildRunner interface {
	IsRunning(host string) bool
}

// HealthSource is the subset of healthprobe.Prober the proxy depends on.
type HealthSource interface {
	LastResult(host string) (domain.HealthState, bool)
}

// CertSource is the subset of certorch.Orchestrator the proxy depends on.
type CertSource interface {
	GetContext(servername string) (*tls.Certificate, error)
}

// readinessTimeout bounds the health gate wait.
const readinessTimeout = 15 * time.Second

// Gateway is the HTTPS listener: SNI cert selection plus the per-request
// static/proxy/WebSocket dispatch. Requests are served through an
// echo.Echo instance solely for its middleware.Recover() guard, so a
// panic anywhere in the dispatch path (or in a misbehaving upstream
// response) is logged and turned into a 500 instead of killing the
// listener goroutine.
type Gateway struct {
	echo        *echo.Echo
	router      HostRouter
	children    ChildRunner
	health      HealthSource
	certs       CertSource
	defaultHost string
	httpsPort   int
	readyWait   time.Duration
	log         interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
		Error(msg interface{}, keyvals ...interface{})
	}
}

// New constructs a Gateway. defaultHost is the TLS fallback target for SNI
// names that don't match any configured App.
func New(router HostRouter, children ChildRunner, health HealthSource, certs CertSource, httpsPort int, defaultHost string) *Gateway {
	if defaultHost == "" {
		defaultHost = "localhost"
	}
	g := &Gateway{
		router:      router,
		children:    children,
		health:      health,
		certs:       certs,
		defaultHost: defaultHost,
		httpsPort:   httpsPort,
		readyWait:   readinessTimeout,
		log:         logging.For("gatewayproxy"),
	}
	g.echo = echo.New()
	g.echo.HideBanner = true
	g.echo.HidePort = true
	g.echo.Use(middleware.Recover())
	g.echo.Any("/*", g.handle)
	return g
}

// Handler exposes the underlying http.Handler for use with http.Server.
func (g *Gateway) Handler() http.Handler { return g.echo }

func (g *Gateway) handle(c echo.Context) error {
	g.serveHTTP(c.Response(), c.Request())
	return nil
}

// TLSConfig builds the *tls.Config for the HTTPS listener, wired to
// GetCertificate for per-host selection.
func (g *Gateway) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: g.getCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

func (g *Gateway) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	sni := hello.ServerName
	if _, ok := g.router.Lookup(sni); sni == "" || !ok {
		sni = g.defaultHost
	}
	return g.certs.GetContext(sni)
}

// serveHTTP dispatches each request: lookup by host, readiness gate,
// then static serving or proxying.
func (g *Gateway) serveHTTP(w http.ResponseWriter, r *http.Request) {
	app, ok := g.router.Lookup(r.Host)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	isUpgrade := isWebSocketUpgrade(r)

	if app.IsSupervised() && !g.children.IsRunning(domain.CanonicalHost(app.Host)) {
		http.Error(w, "App process not running", http.StatusServiceUnavailable)
		return
	}

	if !isUpgrade && app.HealthURL != "" {
		if !g.awaitHealthy(domain.CanonicalHost(app.Host)) {
			http.Error(w, "upstream did not become healthy in time", http.StatusBadGateway)
			return
		}
	}

	start := time.Now()
	if app.IsStatic() {
		serveStatic(w, r, app.StaticDir)
		g.log.Info("served static response", "host", r.Host, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
		return
	}

	g.proxyRequest(w, r, app)
	g.log.Info("proxied request", "host", r.Host, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
}

// awaitHealthy polls the prober's last result until healthy or
// readinessTimeout elapses.
func (g *Gateway) awaitHealthy(host string) bool {
	deadline := time.Now().Add(g.readyWait)
	for {
		if state, ok := g.health.LastResult(host); ok && state.Healthy {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Connection"), "upgrade") ||
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// upstreamTarget derives the backend URL and the reject-unauthorized
// policy from a.upstream or a.port.
func upstreamTarget(a domain.App) (target *url.URL, rejectUnauthorized bool, err error) {
	if a.Upstream != nil {
		scheme := a.Upstream.Scheme
		if scheme == "" {
			scheme = "http"
		}
		host := a.Upstream.Host
		if host == "" {
			host = "127.0.0.1"
		}
		raw := fmt.Sprintf("%s://%s:%d", scheme, host, a.Upstream.Port)
		u, err := url.Parse(raw)
		if err != nil {
			return nil, false, fmt.Errorf("parse upstream for %s: %w", a.Host, err)
		}
		return u, a.Upstream.RejectUnauthorizedOrDefault(), nil
	}
	if a.Port != nil {
		u, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", *a.Port))
		if err != nil {
			return nil, false, fmt.Errorf("parse port upstream for %s: %w", a.Host, err)
		}
		return u, true, nil
	}
	return nil, false, fmt.Errorf("app %s has neither upstream nor port configured", a.Host)
}

func (g *Gateway) proxyRequest(w http.ResponseWriter, r *http.Request, a domain.App) {
	target, rejectUnauthorized, err := upstreamTarget(a)
	if err != nil {
		g.log.Error("no upstream target", "host", a.Host, "error", err)
		http.Error(w, "Bad gateway", http.StatusBadGateway)
		return
	}

	publicHostFull := r.Host
	requestPort := "443"
	if _, p, err := net.SplitHostPort(r.Host); err == nil {
		requestPort = p
	} else if g.httpsPort != 443 {
		requestPort = strconv.Itoa(g.httpsPort)
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			if a.PreserveHost {
				req.Host = r.Host
			} else {
				req.Host = target.Host
			}
			req.Header.Set("X-Forwarded-Proto", "https")
			req.Header.Set("X-Forwarded-Host", r.Host)
			if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				req.Header.Set("X-Forwarded-For", clientIP)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if loc := resp.Header.Get("Location"); loc != "" {
				resp.Header.Set("Location", rewriteLocation(loc, target.Host, publicHostFull, requestPort))
			}
			stripCookieDomains(resp.Header)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.log.Warn("proxy error", "host", a.Host, "error", err)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("Bad gateway"))
		},
	}

	if target.Scheme == "https" && !rejectUnauthorized {
		proxy.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} // #nosec G402 -- explicit operator opt-out via rejectUnauthorized:false
	}

	proxy.ServeHTTP(w, r)
}
