// Package acmeshim drives ACME HTTP-01 issuance for public hosts, adapting
// the usual go-acme/lego certificate-generator pattern to gatewayd's
// shared ChallengeTable instead of a standalone challenge-response
// listener.
package acmeshim

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/bnema/gatewayd/internal/logging"
)

// Client issues certificates for one ACME account, created lazily on
// first use and persisted under accountKeyPath so restarts reuse the
// existing registration.
type Client struct {
	directoryURL   string
	email          string
	accountKeyPath string
	table          *ChallengeTable

	mu      sync.Mutex
	account *accountUser

	log interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// New constructs a Client. table is shared with C8's challenge handler.
func New(directoryURL, email, accountKeyPath string, table *ChallengeTable) *Client {
	return &Client{
		directoryURL:   directoryURL,
		email:          email,
		accountKeyPath: accountKeyPath,
		table:          table,
		log:            logging.For("acmeshim"),
	}
}

// EnsureCertificate obtains a certificate for host with altNames (or
// [host] if empty) as SANs. Failure is returned to the caller (the
// certificate orchestrator), which is responsible for the self-signed
// fallback — this shim never falls back on its own.
func (c *Client) EnsureCertificate(host string, altNames []string) (certPEM, keyPEM []byte, err error) {
	domains := altNames
	if len(domains) == 0 {
		domains = []string{host}
	}

	user, err := c.ensureAccount()
	if err != nil {
		return nil, nil, fmt.Errorf("acme account: %w", err)
	}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = c.directoryURL

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create acme client: %w", err)
	}

	if err := client.Challenge.SetHTTP01Provider(newTableProvider(c.table)); err != nil {
		return nil, nil, fmt.Errorf("configure http-01 provider: %w", err)
	}

	if user.registration == nil {
		reg, err := registerWithRetry(client)
		if err != nil {
			return nil, nil, fmt.Errorf("register acme account: %w", err)
		}
		user.registration = reg
	}

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: domains,
		Bundle:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("obtain certificate for %s: %w", host, err)
	}

	c.log.Info("issued certificate via ACME", "host", host, "domains", domains)
	return res.Certificate, res.PrivateKey, nil
}

// registerWithRetry retries account registration against transient
// directory-server errors (connection resets, 5xx) with capped exponential
// backoff, since a fresh account registration has no fallback path the way
// certificate issuance does.
func registerWithRetry(client *lego.Client) (*registration.Resource, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second

	var reg *registration.Resource
	err := backoff.Retry(func() error {
		var err error
		reg, err = client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		return err
	}, b)
	return reg, err
}

func (c *Client) ensureAccount() (*accountUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account != nil {
		return c.account, nil
	}

	key, err := c.loadOrCreateAccountKey()
	if err != nil {
		return nil, err
	}

	c.account = &accountUser{email: c.email, key: key}
	return c.account, nil
}

func (c *Client) loadOrCreateAccountKey() (crypto.PrivateKey, error) {
	if data, err := os.ReadFile(c.accountKeyPath); err == nil {
		block, _ := pem.Decode(data)
		if block != nil {
			if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
				return key, nil
			}
		}
		c.log.Warn("account key on disk was unreadable, regenerating", "path", c.accountKeyPath)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal account key: %w", err)
	}

	if dir := filepath.Dir(c.accountKeyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create account key dir: %w", err)
		}
	}
	if err := os.WriteFile(c.accountKeyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		return nil, fmt.Errorf("persist account key: %w", err)
	}

	return key, nil
}

type accountUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *accountUser) GetEmail() string                        { return u.email }
func (u *accountUser) GetRegistration() *registration.Resource { return u.registration }
func (u *accountUser) GetPrivateKey() crypto.PrivateKey        { return u.key }
