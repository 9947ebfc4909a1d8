package mqtt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ibs-source/payload-relay/internal/config"
)

// testCerts holds PEM files written for one test
type testCerts struct {
	ca, cert, key string
}

func writeTestCerts(t *testing.T) testCerts {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "relay-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}

	certs := testCerts{
		ca:   filepath.Join(dir, "ca.pem"),
		cert: filepath.Join(dir, "client.pem"),
		key:  filepath.Join(dir, "client.key"),
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	writeFile(t, certs.ca, certPEM)
	writeFile(t, certs.cert, certPEM)
	writeFile(t, certs.key, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return certs
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestNewTLSConfig(t *testing.T) {
	certs := writeTestCerts(t)

	t.Run("WithCAAndClientCert", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{
			TLSEnabled: true,
			CACert:     certs.ca,
			ClientCert: certs.cert,
			ClientKey:  certs.key,
		})
		if err != nil {
			t.Fatalf("newTLSConfig() failed: %v", err)
		}
		if tlsConfig.RootCAs == nil {
			t.Error("RootCAs not set")
		}
		if len(tlsConfig.Certificates) != 1 {
			t.Errorf("expected 1 client certificate, got %d", len(tlsConfig.Certificates))
		}
		if tlsConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be false by default")
		}
	})

	t.Run("InsecureSkipVerify", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true, InsecureSkip: true})
		if err != nil {
			t.Fatalf("newTLSConfig() failed: %v", err)
		}
		if !tlsConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be true")
		}
	})

	t.Run("ClientCertWithoutKeyIgnored", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true, ClientCert: certs.cert})
		if err != nil {
			t.Fatalf("newTLSConfig() failed: %v", err)
		}
		if len(tlsConfig.Certificates) != 0 {
			t.Error("client certificate loaded without key")
		}
	})
}

func TestNewTLSConfig_Errors(t *testing.T) {
	certs := writeTestCerts(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	writeFile(t, garbage, []byte("not a certificate"))

	tests := []struct {
		name string
		cfg  config.MQTTConfig
	}{
		{name: "missing CA", cfg: config.MQTTConfig{CACert: "/nonexistent/ca.pem"}},
		{name: "corrupted CA", cfg: config.MQTTConfig{CACert: garbage}},
		{name: "missing client cert", cfg: config.MQTTConfig{ClientCert: "/nonexistent/c.pem", ClientKey: certs.key}},
		{name: "key is not a key", cfg: config.MQTTConfig{ClientCert: certs.cert, ClientKey: garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.TLSEnabled = true
			if _, err := newTLSConfig(&tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewClient_TLSError(t *testing.T) {
	_, err := NewClient(&config.MQTTConfig{
		Broker:     "ssl://localhost:8883",
		ClientID:   "tls-error",
		TLSEnabled: true,
		CACert:     "/nonexistent/ca.pem",
	}, nil, nil)
	if err == nil {
		t.Error("expected error for missing CA, got nil")
	}
}
