// Package certstore reads and writes the PEM certificate/key pairs backing
// gatewayd's TLS termination. Two naming schemes coexist: a per-host pair
// for public/ACME certs, and the canonical "local-gateway" pair for the
// combined self-signed certificate.
package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bnema/gatewayd/internal/logging"
)

// LocalGatewayName is the canonical record name for the combined
// self-signed certificate covering all local-like hosts.
const LocalGatewayName = "local-gateway"

// Record is a parsed view of a certificate's identity, used to decide
// whether an on-disk cert already covers the SAN set a caller needs.
type Record struct {
	SubjectCN     string
	SANDNSNames   []string
}

// Store reads and atomically writes cert/key pairs under a single storage
// directory.
type Store struct {
	dir string
	log interface {
		Debug(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cert storage dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: logging.For("certstore")}, nil
}

// Dir returns the storage directory root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) certPath(name string) string { return filepath.Join(s.dir, name+".crt") }
func (s *Store) keyPath(name string) string  { return filepath.Join(s.dir, name+".key") }

// Exists reports whether both files of a named record are present.
func (s *Store) Exists(name string) bool {
	if _, err := os.Stat(s.certPath(name)); err != nil {
		return false
	}
	if _, err := os.Stat(s.keyPath(name)); err != nil {
		return false
	}
	return true
}

// Read loads the cert and key PEM bytes for a named record.
func (s *Store) Read(name string) (certPEM, keyPEM []byte, err error) {
	certPEM, err = os.ReadFile(s.certPath(name))
	if err != nil {
		return nil, nil, fmt.Errorf("read cert %s: %w", name, err)
	}
	keyPEM, err = os.ReadFile(s.keyPath(name))
	if err != nil {
		return nil, nil, fmt.Errorf("read key %s: %w", name, err)
	}
	return certPEM, keyPEM, nil
}

// Write persists a cert/key pair via write-to-temp-then-rename for each
// file, so a reader never observes a half-written file. The two files are
// not swapped as one unit: the cert is written first, then the key, each
// atomically; a concurrent reader either sees the old pair
// in full or (briefly) the new cert with the old key, which callers must
// treat as "in flight" — getContext callers hold the per-hostname lock
// that serializes writers with the sole reader of a freshly-written pair.
func (s *Store) Write(name string, certPEM, keyPEM []byte) error {
	if err := writeAtomic(s.certPath(name), certPEM, 0o644); err != nil {
		return fmt.Errorf("write cert %s: %w", name, err)
	}
	if err := writeAtomic(s.keyPath(name), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key %s: %w", name, err)
	}
	s.log.Debug("wrote certificate pair", "name", name, "dir", s.dir)
	return nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

var (
	sanDNSPattern = regexp.MustCompile(`DNS:([^,\s]+)`)
	cnEndPattern  = regexp.MustCompile(`[,/\n]`)
)

// ParseCertificate extracts the Subject CN and SAN DNS names from a PEM
// certificate. It tolerates certs with no SAN extension (SANDNSNames is
// then empty) rather than failing.
func ParseCertificate(certPEM []byte) (Record, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return Record{}, fmt.Errorf("not a PEM certificate block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Record{}, fmt.Errorf("parse x509 certificate: %w", err)
	}

	cn := cert.Subject.CommonName
	if idx := cnEndPattern.FindStringIndex(cn); idx != nil {
		cn = cn[:idx[0]]
	}

	sans := make([]string, 0, len(cert.DNSNames))
	for _, n := range cert.DNSNames {
		sans = append(sans, strings.ToLower(n))
	}

	return Record{SubjectCN: cn, SANDNSNames: sans}, nil
}

// HasSAN reports whether rec's SAN set contains name, case-insensitively.
func (r Record) HasSAN(name string) bool {
	name = strings.ToLower(name)
	for _, s := range r.SANDNSNames {
		if s == name {
			return true
		}
	}
	return false
}

// CoversAll reports whether rec's SAN set is a superset of names.
func (r Record) CoversAll(names []string) bool {
	for _, n := range names {
		if !r.HasSAN(n) {
			return false
		}
	}
	return true
}
