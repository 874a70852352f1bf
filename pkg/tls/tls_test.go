package tls

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert(&CertificateConfig{
		Organization: "test",
		CommonName:   "meter.local",
		Hosts:        []string{"meter.local", "10.0.0.5"},
		ValidFor:     time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, "meter.local", cert.Certificate.Subject.CommonName)
	assert.Equal(t, []string{"meter.local"}, cert.Certificate.DNSNames)
	require.Len(t, cert.Certificate.IPAddresses, 1)
	assert.Equal(t, "10.0.0.5", cert.Certificate.IPAddresses[0].String())
	assert.Contains(t, cert.Certificate.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cert.Certificate.NotAfter, 2*time.Minute)
	assert.Contains(t, string(cert.CertPEM), "BEGIN CERTIFICATE")
	assert.Contains(t, string(cert.KeyPEM), "BEGIN EC PRIVATE KEY")
}

func TestGenerateSelfSignedCert_Default(t *testing.T) {
	cert, err := GenerateSelfSignedCert(nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cert.Certificate.Subject.CommonName)
	assert.Contains(t, cert.Certificate.DNSNames, "localhost")
	assert.Len(t, cert.Certificate.IPAddresses, 2)
	assert.NoError(t, cert.Certificate.VerifyHostname("127.0.0.1"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Enabled: true}).Validate())
	assert.NoError(t, (&Config{Enabled: true, CertFile: "a", KeyFile: "b"}).Validate())
	assert.ErrorIs(t, (&Config{Enabled: true, CertFile: "a"}).Validate(), ErrIncompleteKeyPair)
}

func TestServerConfig(t *testing.T) {
	cfg, err := ServerConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = ServerConfig(&Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = ServerConfig(&Config{Enabled: true})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1, "generated")

	dir := t.TempDir()
	certPath, keyPath := filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem")
	gen, err := GenerateSelfSignedCert(nil)
	require.NoError(t, err)
	require.NoError(t, SaveCertificate(gen, certPath, keyPath, false))

	cfg, err = ServerConfig(&Config{Enabled: true, CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	_, err = ServerConfig(&Config{Enabled: true, CertFile: filepath.Join(dir, "missing.pem"), KeyFile: keyPath})
	assert.ErrorContains(t, err, "failed to load TLS certificates")
}

func TestSaveCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "nested", "server.crt")
	keyPath := filepath.Join(dir, "nested", "server.key")

	gen, err := GenerateSelfSignedCert(nil)
	require.NoError(t, err)
	require.NoError(t, SaveCertificate(gen, certPath, keyPath, false))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = SaveCertificate(gen, certPath, keyPath, false)
	assert.ErrorIs(t, err, ErrCertificateExists)
	assert.NoError(t, SaveCertificate(gen, certPath, keyPath, true))

	assert.Error(t, SaveCertificate(nil, certPath, keyPath, true))
}
