// Package selfsigned generates the RSA-2048/SHA-256 self-signed
// certificates gatewayd uses for local-like hosts and as an ACME
// fallback.
package selfsigned

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// keyBits is fixed at 2048: the issuer never emits keys weaker than that.
const keyBits = 2048

// validity exceeds a 365-day floor while staying under the CA/Browser
// Forum's current maximum leaf lifetime for publicly trusted certs, so the
// same code path is safe to reuse if a self-signed cert is ever chained
// into stricter validation.
const validity = 397 * 24 * time.Hour

// Issue produces a self-signed certificate for commonName with sans as its
// subjectAltName DNS entries (commonName is included automatically if not
// already present). Returns PEM-encoded cert and key.
func Issue(commonName string, sans []string) (certPEM, keyPEM []byte, err error) {
	if commonName == "" {
		return nil, nil, fmt.Errorf("selfsigned: commonName is required")
	}

	names := dedupeWithCN(commonName, sans)

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour), // tolerate clock skew on the client side
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:     names,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	for _, n := range names {
		if ip := net.ParseIP(n); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create self-signed certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}

func dedupeWithCN(cn string, sans []string) []string {
	seen := map[string]bool{cn: true}
	out := []string{cn}
	for _, s := range sans {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
