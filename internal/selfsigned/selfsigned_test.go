package selfsigned

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueProducesUsableKeyPair(t *testing.T) {
	certPEM, keyPEM, err := Issue("local-gateway", []string{"app.local", "*.local"})
	require.NoError(t, err)

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)

	require.Equal(t, "local-gateway", cert.Subject.CommonName)
	require.ElementsMatch(t, []string{"local-gateway", "app.local", "*.local"}, cert.DNSNames)
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	require.True(t, ok)
	require.GreaterOrEqual(t, pub.Size()*8, 2048)
	require.True(t, cert.NotAfter.Sub(cert.NotBefore) >= 365*24*time.Hour)
	require.Equal(t, x509.SHA256WithRSA, cert.SignatureAlgorithm)
}

func TestIssueRequiresCommonName(t *testing.T) {
	_, _, err := Issue("", nil)
	require.Error(t, err)
}
