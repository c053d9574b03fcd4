package certorch

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// parseNotAfter extracts NotAfter from a PEM certificate, used to decide
// whether a public host's existing certificate still has enough validity
// to reuse.
func parseNotAfter(certPEM []byte) (time.Time, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return time.Time{}, fmt.Errorf("not a PEM certificate block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse x509 certificate: %w", err)
	}
	return cert.NotAfter, nil
}
