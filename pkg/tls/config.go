package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config enables TLS on a transport. Without CertFile and KeyFile a
// self-signed certificate is generated at startup.
type Config struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
}

// ErrIncompleteKeyPair is returned when only one of CertFile and KeyFile is set.
var ErrIncompleteKeyPair = errors.New("certFile and keyFile must be set together")

// Validate checks the file settings. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return ErrIncompleteKeyPair
	}
	return nil
}

// ServerConfig returns the server-side TLS configuration for c, or nil when
// TLS is disabled.
func ServerConfig(c *Config) (*tls.Config, error) {
	if c == nil || !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var (
		cert tls.Certificate
		err  error
	)
	if c.CertFile != "" {
		cert, err = tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificates: %w", err)
		}
	} else {
		gen, genErr := GenerateSelfSignedCert(nil)
		if genErr != nil {
			return nil, genErr
		}
		cert, err = tls.X509KeyPair(gen.CertPEM, gen.KeyPEM)
		if err != nil {
			return nil, err
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ErrCertificateExists is returned by SaveCertificate when a file exists and
// overwrite is false.
var ErrCertificateExists = errors.New("certificate file already exists")

// SaveCertificate writes cert to PEM files, creating parent directories. The
// key file is readable by its owner only.
func SaveCertificate(cert *GeneratedCertificate, certPath, keyPath string, overwrite bool) error {
	if cert == nil {
		return errors.New("certificate cannot be nil")
	}
	if !overwrite {
		for _, p := range []string{certPath, keyPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%w: %s", ErrCertificateExists, p)
			}
		}
	}

	for _, p := range []string{certPath, keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(certPath, cert.CertPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	if err := os.WriteFile(keyPath, cert.KeyPEM, 0o600); err != nil {
		// Clean up cert file if key write fails
		_ = os.Remove(certPath)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
