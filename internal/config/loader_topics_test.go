package config

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
	"strings"
	"testing"
	"time"
)

func TestResolveTopics_NoPrefix(t *testing.T) {
	cfg := &MQTTConfig{PublishTopic: "relay/payloads", AckTopic: "relay/acks/+"}

	if err := resolveTopics(cfg); err != nil {
		t.Fatalf("resolveTopics() error = %v; want nil", err)
	}
	if cfg.PublishTopic != "relay/payloads" {
		t.Errorf("PublishTopic = %s; want relay/payloads", cfg.PublishTopic)
	}
	if cfg.AckTopic != "relay/acks/+" {
		t.Errorf("AckTopic = %s; want relay/acks/+", cfg.AckTopic)
	}
}

func TestResolveTopics_CertCNPrefix(t *testing.T) {
	cfg := &MQTTConfig{
		PublishTopic:    "relay/payloads",
		AckTopic:        "gateway-7/relay/acks",
		UseCertCNPrefix: true,
		ClientCert:      writeTestCert(t, "gateway-7", false),
	}

	if err := resolveTopics(cfg); err != nil {
		t.Fatalf("resolveTopics() error = %v; want nil", err)
	}
	if cfg.PublishTopic != "gateway-7/relay/payloads" {
		t.Errorf("PublishTopic = %s; want gateway-7/relay/payloads", cfg.PublishTopic)
	}
	// already prefixed topics are kept as they are
	if cfg.AckTopic != "gateway-7/relay/acks" {
		t.Errorf("AckTopic = %s; want gateway-7/relay/acks", cfg.AckTopic)
	}

	if err := resolveTopics(cfg); err != nil {
		t.Fatalf("second resolveTopics() error = %v; want nil", err)
	}
	if cfg.PublishTopic != "gateway-7/relay/payloads" {
		t.Errorf("PublishTopic after second pass = %s; want gateway-7/relay/payloads", cfg.PublishTopic)
	}
}

func TestResolveTopics_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MQTTConfig
		wantErr string
	}{
		{
			name:    "prefix without certificate",
			cfg:     MQTTConfig{PublishTopic: "p", AckTopic: "a", UseCertCNPrefix: true},
			wantErr: "without a client certificate",
		},
		{
			name:    "missing certificate",
			cfg:     MQTTConfig{PublishTopic: "p", AckTopic: "a", UseCertCNPrefix: true, ClientCert: "/nonexistent/cert.pem"},
			wantErr: "failed to read",
		},
		{name: "wildcard publish", cfg: MQTTConfig{PublishTopic: "relay/+", AckTopic: "a"}, wantErr: "publish topic"},
		{name: "multi-level publish", cfg: MQTTConfig{PublishTopic: "relay/#", AckTopic: "a"}, wantErr: "publish topic"},
		{name: "hash not last", cfg: MQTTConfig{PublishTopic: "p", AckTopic: "relay/#/acks"}, wantErr: "ack topic"},
		{name: "partial level wildcard", cfg: MQTTConfig{PublishTopic: "p", AckTopic: "relay/ack+"}, wantErr: "ack topic"},
		{name: "nul in topic", cfg: MQTTConfig{PublishTopic: "p\x00", AckTopic: "a"}, wantErr: "NUL"},
		{name: "too long", cfg: MQTTConfig{PublishTopic: strings.Repeat("a", maxTopicLength+1), AckTopic: "a"}, wantErr: "longer than"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := resolveTopics(&cfg)
			if err == nil {
				t.Fatalf("resolveTopics() error = nil; want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("resolveTopics() error = %v; want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckTopic_Filters(t *testing.T) {
	for _, topic := range []string{"#", "+", "relay/+/acks", "relay/#", "+/+/#", "", "/relay/"} {
		if err := checkTopic(topic, true); err != nil {
			t.Errorf("checkTopic(%q, filter) error = %v; want nil", topic, err)
		}
	}
}

func TestCertCommonName_InvalidPEM(t *testing.T) {
	certPath := filepath.Join(t.TempDir(), "invalid-cert.pem")
	if err := os.WriteFile(certPath, []byte("invalid cert content"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := certCommonName(certPath); err == nil {
		t.Error("certCommonName() error = nil; want error for invalid PEM")
	}
}

func TestCertCommonName_Subject(t *testing.T) {
	tests := []struct {
		name    string
		cn      string
		wantErr bool
	}{
		{name: "plain", cn: "gateway-7"},
		{name: "empty", cn: "", wantErr: true},
		{name: "slash", cn: "site/gw", wantErr: true},
		{name: "wildcard", cn: "gw+1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cn, err := certCommonName(writeTestCert(t, tt.cn, false))
			if tt.wantErr {
				if err == nil {
					t.Errorf("certCommonName() = %q; want error", cn)
				}
				return
			}
			if err != nil {
				t.Fatalf("certCommonName() error = %v", err)
			}
			if cn != tt.cn {
				t.Errorf("certCommonName() = %q; want %q", cn, tt.cn)
			}
		})
	}
}

func TestCertCommonName_KeyBeforeCertificate(t *testing.T) {
	cn, err := certCommonName(writeTestCert(t, "gateway-9", true))
	if err != nil {
		t.Fatalf("certCommonName() error = %v", err)
	}
	if cn != "gateway-9" {
		t.Errorf("certCommonName() = %q; want gateway-9", cn)
	}
}

// writeTestCert writes a self-signed certificate with the given CN and
// returns its path. keyFirst puts the private key block ahead of it.
func writeTestCert(t *testing.T, cn string, keyFirst bool) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"relay-test"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	var data []byte
	if keyFirst {
		keyDER, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			t.Fatalf("Failed to marshal key: %v", err)
		}
		data = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	}
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)

	path := filepath.Join(t.TempDir(), "client.pem")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write certificate: %v", err)
	}
	return path
}
