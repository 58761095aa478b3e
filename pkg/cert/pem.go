package cert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PEM encoding errors.
var (
	ErrInvalidPEM = errors.New("invalid PEM data")
)

// WriteCertFile writes a certificate chain to a PEM file.
func WriteCertFile(path string, c tls.Certificate) error {
	var data []byte
	for _, der := range c.Certificate {
		data = append(data, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: der,
		})...)
	}
	return os.WriteFile(path, data, 0644)
}

// WriteKeyFile writes the certificate's ECDSA private key to a PEM file
// with restricted permissions.
func WriteKeyFile(path string, c tls.Certificate) error {
	key, ok := c.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return fmt.Errorf("unsupported private key type %T", c.PrivateKey)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	data := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: der,
	})
	return os.WriteFile(path, data, 0600)
}

// LoadCertificate loads a TLS identity from PEM certificate and key
// files.
func LoadCertificate(certPath, keyPath string) (tls.Certificate, error) {
	c, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load certificate: %w", err)
	}
	return c, nil
}

// DecodeCertPEM decodes the first certificate in PEM data.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	return x509.ParseCertificate(block.Bytes)
}
