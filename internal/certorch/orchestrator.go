// Package certorch implements the per-host certificate policy: local-like
// hosts share one combined self-signed certificate with a unioned SAN set;
// public hosts are issued via ACME with a self-signed fallback; both paths
// feed a TTL-bounded TLS context cache consulted from the TLS listener's
// SNI callback.
package certorch

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/gatewayd/internal/certstore"
	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/logging"
	"github.com/bnema/gatewayd/internal/selfsigned"
)

// nearExpiryThreshold bounds certificate reuse: a public host's existing
// certificate is reused only when more than this much validity remains,
// rather than whenever the files merely exist.
const nearExpiryThreshold = 10 * 24 * time.Hour

// ACMEIssuer is the subset of acmeshim.Client the orchestrator depends on.
type ACMEIssuer interface {
	EnsureCertificate(host string, altNames []string) (certPEM, keyPEM []byte, err error)
}

// AppSource supplies the current app set so the orchestrator can compute
// the local-like SAN union. Implemented by internal/router.
type AppSource interface {
	Apps() []domain.App
}

// Orchestrator is the process-wide certificate authority: one instance per
// process, per the "Global state" design note.
type Orchestrator struct {
	store  *certstore.Store
	acme   ACMEIssuer
	apps   AppSource
	cache  *ttlCache
	logger interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
		Debug(msg interface{}, keyvals ...interface{})
	}

	hostLocks   sync.Map // map[string]*sync.Mutex, serializes ensureCert per hostname
	defaultHost string   // SNI fallback target, "localhost"
}

// New constructs an Orchestrator. defaultHost is the SNI fallback target
// used when a ClientHello's servername is unknown.
func New(store *certstore.Store, acme ACMEIssuer, apps AppSource, defaultHost string) *Orchestrator {
	if defaultHost == "" {
		defaultHost = "localhost"
	}
	return &Orchestrator{
		store:       store,
		acme:        acme,
		apps:        apps,
		cache:       newTTLCache(DefaultCacheTTL, DefaultCacheMaxEntries),
		logger:      logging.For("certorch"),
		defaultHost: defaultHost,
	}
}

// Start runs the TTL cache's hourly expiry sweep until ctx is canceled.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.cache.startSweeper(ctx)
}

// EnsuredCert is the result of EnsureCert: the PEM-encoded pair plus the
// paths they were written to.
type EnsuredCert struct {
	CertPEM    []byte
	KeyPEM     []byte
	CertPath   string
	KeyPath    string
	RecordName string // certstore record backing this cert, e.g. certstore.LocalGatewayName
}

func (o *Orchestrator) lockFor(key string) *sync.Mutex {
	v, _ := o.hostLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// EnsureCert resolves the certificate policy for a single hostname,
// serialized per hostname so concurrent callers for the same host never
// race an issuance or parse.
func (o *Orchestrator) EnsureCert(hostname string) (*EnsuredCert, error) {
	hostname = domain.CanonicalHost(hostname)

	lockKey := hostname
	if IsLocalLike(hostname) {
		lockKey = certstore.LocalGatewayName
	}
	lock := o.lockFor(lockKey)
	lock.Lock()
	defer lock.Unlock()

	if IsLocalLike(hostname) {
		return o.ensureLocalGateway(hostname)
	}
	return o.ensurePublic(hostname)
}

// ensureLocalGateway issues or reuses the single combined certificate
// shared by every local-like host.
func (o *Orchestrator) ensureLocalGateway(hostname string) (*EnsuredCert, error) {
	sans := o.localSANUnion(hostname)

	if o.store.Exists(certstore.LocalGatewayName) {
		certPEM, keyPEM, err := o.store.Read(certstore.LocalGatewayName)
		if err == nil {
			rec, parseErr := certstore.ParseCertificate(certPEM)
			if parseErr == nil && rec.SubjectCN == certstore.LocalGatewayName && rec.CoversAll(sans) {
				o.logger.Debug("reusing combined local-gateway certificate", "host", hostname)
				return o.result(certstore.LocalGatewayName, certPEM, keyPEM), nil
			}
		}
	}

	o.logger.Info("regenerating combined local-gateway certificate", "host", hostname, "sans", sans)
	certPEM, keyPEM, err := selfsigned.Issue(certstore.LocalGatewayName, sans)
	if err != nil {
		return nil, fmt.Errorf("issue combined local-gateway certificate: %w", err)
	}
	if err := o.store.Write(certstore.LocalGatewayName, certPEM, keyPEM); err != nil {
		return nil, fmt.Errorf("persist combined local-gateway certificate: %w", err)
	}
	o.cache.invalidateRecord(certstore.LocalGatewayName)
	return o.result(certstore.LocalGatewayName, certPEM, keyPEM), nil
}

// localSANUnion computes the union of SAN entries the combined
// local-gateway certificate must cover: the requesting hostname, every
// configured local-like app host/altName, and the two-label wildcard base
// for each qualifying name.
func (o *Orchestrator) localSANUnion(hostname string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		n = strings.ToLower(n)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	add(hostname)
	if w := TwoLabelWildcard(hostname); w != "" {
		add(w)
	}

	for _, a := range o.apps.Apps() {
		names := append([]string{a.Host}, a.AltNames...)
		for _, n := range names {
			n = domain.CanonicalHost(n)
			if !IsLocalLike(n) {
				continue
			}
			add(n)
			if w := TwoLabelWildcard(n); w != "" {
				add(w)
			}
		}
	}

	return out
}

// ensurePublic issues or reuses a certificate for a single public host.
func (o *Orchestrator) ensurePublic(hostname string) (*EnsuredCert, error) {
	if o.store.Exists(hostname) {
		certPEM, keyPEM, err := o.store.Read(hostname)
		if err == nil {
			if fresh, parseErr := o.isFreshEnough(certPEM); parseErr == nil && fresh {
				o.logger.Debug("reusing existing certificate", "host", hostname)
				return o.result(hostname, certPEM, keyPEM), nil
			}
		}
	}

	altNames := o.altNamesFor(hostname)
	certPEM, keyPEM, err := o.acme.EnsureCertificate(hostname, altNames)
	if err != nil {
		o.logger.Warn("ACME issuance failed, falling back to self-signed", "host", hostname, "error", err)
		certPEM, keyPEM, err = selfsigned.Issue(hostname, []string{hostname})
		if err != nil {
			return nil, fmt.Errorf("self-signed fallback for %s: %w", hostname, err)
		}
	}

	if err := o.store.Write(hostname, certPEM, keyPEM); err != nil {
		return nil, fmt.Errorf("persist certificate for %s: %w", hostname, err)
	}
	o.cache.invalidateRecord(hostname)
	return o.result(hostname, certPEM, keyPEM), nil
}

func (o *Orchestrator) altNamesFor(hostname string) []string {
	for _, a := range o.apps.Apps() {
		if domain.CanonicalHost(a.Host) == hostname {
			return append([]string{hostname}, a.AltNames...)
		}
	}
	return []string{hostname}
}

// isFreshEnough parses certPEM and reports whether its remaining validity
// exceeds nearExpiryThreshold.
func (o *Orchestrator) isFreshEnough(certPEM []byte) (bool, error) {
	notAfter, err := parseNotAfter(certPEM)
	if err != nil {
		return false, err
	}
	return time.Until(notAfter) > nearExpiryThreshold, nil
}

func (o *Orchestrator) result(name string, certPEM, keyPEM []byte) *EnsuredCert {
	return &EnsuredCert{
		CertPEM:    certPEM,
		KeyPEM:     keyPEM,
		CertPath:   o.store.Dir() + "/" + name + ".crt",
		KeyPath:    o.store.Dir() + "/" + name + ".key",
		RecordName: name,
	}
}

// GetContext is the SNI entry point. servername is matched
// case-insensitively; unknown hosts are not this function's concern to
// redirect (that's the listener falling back to defaultHost).
func (o *Orchestrator) GetContext(servername string) (*tls.Certificate, error) {
	servername = domain.CanonicalHost(servername)
	if servername == "" {
		servername = o.defaultHost
	}

	if cert, ok := o.cache.get(servername); ok {
		return cert, nil
	}

	ensured, err := o.EnsureCert(servername)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(ensured.CertPEM, ensured.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair for %s: %w", servername, err)
	}

	o.cache.put(servername, ensured.RecordName, &cert)
	return &cert, nil
}

// OnAppEvent proactively regenerates the combined cert for a
// newly-appearing local-like host so its SAN coverage is warm before the
// first handshake.
func (o *Orchestrator) OnAppEvent(host string) {
	if !IsLocalLike(host) {
		return
	}
	if _, err := o.EnsureCert(host); err != nil {
		o.logger.Warn("proactive local-gateway regeneration failed", "host", host, "error", err)
	}
}

// Subscribe wires OnAppEvent to app-added and app-start. The
// regeneration runs on its own goroutine so a slow ACME/self-signed call
// never blocks the supervisor or router handlers also listening on bus.
func (o *Orchestrator) Subscribe(bus *eventbus.Bus) {
	handler := func(e domain.Event) { go o.OnAppEvent(e.Host) }
	bus.Subscribe(domain.EventAppAdded, handler)
	bus.Subscribe(domain.EventAppStart, handler)
}
