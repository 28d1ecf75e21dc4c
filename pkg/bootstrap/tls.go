package bootstrap

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "key.pem"

	// serverCertValidity is how long an issued certificate lives
	serverCertValidity = 90 * 24 * time.Hour
	// rotationWindow triggers reissue this long before expiry
	rotationWindow = 30 * 24 * time.Hour
	// serverKeySize matches short-lived service certificates
	serverKeySize = 2048
)

// ensureServerCert returns the cert and key paths under dir, issuing a
// fresh self-signed pair when none exists, the existing one is within
// the rotation window, or its SANs no longer cover hosts
func ensureServerCert(dir string, hosts []string) (certPath, keyPath string, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create service dir: %w", err)
	}

	certPath = filepath.Join(dir, certFileName)
	keyPath = filepath.Join(dir, keyFileName)

	if cert, err := loadCertificate(certPath); err == nil {
		if _, statErr := os.Stat(keyPath); statErr == nil && !certNeedsRotation(cert, hosts, time.Now()) {
			return certPath, keyPath, nil
		}
	}

	if err := issueServerCert(certPath, keyPath, hosts); err != nil {
		return "", "", err
	}
	return certPath, keyPath, nil
}

// issueServerCert generates a self-signed certificate covering hosts
// and writes the PEM pair
func issueServerCert(certPath, keyPath string, hosts []string) error {
	key, err := rsa.GenerateKey(rand.Reader, serverKeySize)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Steward"},
			CommonName:   "steward-vector-store",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(serverCertValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// certNeedsRotation reports whether cert must be reissued: inside the
// rotation window before expiry, or hosts its SANs do not cover
func certNeedsRotation(cert *x509.Certificate, hosts []string, now time.Time) bool {
	if now.After(cert.NotAfter.Add(-rotationWindow)) {
		return true
	}
	for _, host := range hosts {
		if host == "" {
			continue
		}
		if err := cert.VerifyHostname(host); err != nil {
			return true
		}
	}
	return false
}

// loadCertificate parses the first PEM certificate in path
func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate block in %s", path)
	}
	return x509.ParseCertificate(block.Bytes)
}
