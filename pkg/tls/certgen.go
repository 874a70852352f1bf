// Package tls provides certificates for the TLS-enabled transports.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CertificateConfig contains options for certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate
	Organization string
	// Common name (CN) for the certificate
	CommonName string
	// Hosts are DNS names or IP addresses the certificate is valid for.
	Hosts []string
	// Validity duration
	ValidFor time.Duration
}

// DefaultCertificateConfig returns a configuration for a local test device.
func DefaultCertificateConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "serialmock",
		CommonName:   "localhost",
		Hosts:        []string{"localhost", "127.0.0.1", "::1"},
		ValidFor:     365 * 24 * time.Hour,
	}
}

// GeneratedCertificate contains a generated certificate and its private key.
type GeneratedCertificate struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CertPEM     []byte
	KeyPEM      []byte
}

// GenerateSelfSignedCert generates a self-signed P-256 certificate. A nil cfg
// uses DefaultCertificateConfig.
func GenerateSelfSignedCert(cfg *CertificateConfig) (*GeneratedCertificate, error) {
	if cfg == nil {
		cfg = DefaultCertificateConfig()
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	template, err := certificateTemplate(cfg)
	if err != nil {
		return nil, err
	}

	// self-signed, so parent = template
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &GeneratedCertificate{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

func certificateTemplate(cfg *CertificateConfig) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	validFor := cfg.ValidFor
	if validFor <= 0 {
		validFor = 365 * 24 * time.Hour
	}
	notBefore := time.Now().Add(-time.Minute)

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range cfg.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	return template, nil
}
