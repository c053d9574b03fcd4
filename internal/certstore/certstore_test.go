package certstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/selfsigned"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	certPEM, keyPEM, err := selfsigned.Issue("app.example.com", []string{"app.example.com", "alt.example.com"})
	require.NoError(t, err)

	require.False(t, store.Exists("app.example.com"))
	require.NoError(t, store.Write("app.example.com", certPEM, keyPEM))
	require.True(t, store.Exists("app.example.com"))

	gotCert, gotKey, err := store.Read("app.example.com")
	require.NoError(t, err)
	require.Equal(t, certPEM, gotCert)
	require.Equal(t, keyPEM, gotKey)
}

func TestWriteLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	certPEM, keyPEM, err := selfsigned.Issue("local-gateway", []string{"local-gateway", "a.local"})
	require.NoError(t, err)
	require.NoError(t, store.Write(LocalGatewayName, certPEM, keyPEM))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "only cert and key should remain, no .tmp-* leftovers")
	for _, e := range entries {
		require.False(t, filepath.Ext(e.Name()) == "", "unexpected file: "+e.Name())
	}
}

func TestParseCertificateExtractsCNAndSANs(t *testing.T) {
	certPEM, _, err := selfsigned.Issue("local-gateway", []string{"local-gateway", "a.local", "b.local"})
	require.NoError(t, err)

	rec, err := ParseCertificate(certPEM)
	require.NoError(t, err)
	require.Equal(t, "local-gateway", rec.SubjectCN)
	require.True(t, rec.HasSAN("a.local"))
	require.True(t, rec.HasSAN("b.local"))
	require.True(t, rec.CoversAll([]string{"a.local", "b.local"}))
	require.False(t, rec.CoversAll([]string{"a.local", "missing.local"}))
}

func TestParseCertificateRejectsNonCertificatePEM(t *testing.T) {
	_, err := ParseCertificate([]byte("not a certificate"))
	require.Error(t, err)
}

func TestExistsFalseWhenKeyMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.crt"), []byte("cert"), 0o644))
	require.False(t, store.Exists("partial"))
}
