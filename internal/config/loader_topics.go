package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// maxTopicLength is the MQTT limit on a UTF-8 encoded topic
const maxTopicLength = 65535

// resolveTopics prefixes both topics with the client certificate CN when
// asked to, then checks that the publish topic is a plain topic name and
// the ack topic a valid subscription filter.
func resolveTopics(cfg *MQTTConfig) error {
	if cfg.UseCertCNPrefix {
		if cfg.ClientCert == "" {
			return fmt.Errorf("cert CN prefix requested without a client certificate")
		}
		cn, err := certCommonName(cfg.ClientCert)
		if err != nil {
			return fmt.Errorf("client certificate %s: %w", cfg.ClientCert, err)
		}
		cfg.PublishTopic = withPrefix(cn, cfg.PublishTopic)
		cfg.AckTopic = withPrefix(cn, cfg.AckTopic)
	}

	if err := checkTopic(cfg.PublishTopic, false); err != nil {
		return fmt.Errorf("publish topic %q: %w", cfg.PublishTopic, err)
	}
	if err := checkTopic(cfg.AckTopic, true); err != nil {
		return fmt.Errorf("ack topic %q: %w", cfg.AckTopic, err)
	}
	return nil
}

// withPrefix puts cn in front of topic unless it is already there
func withPrefix(cn, topic string) string {
	if topic == "" || strings.HasPrefix(topic, cn+"/") {
		return topic
	}
	return cn + "/" + topic
}

// checkTopic validates topic as a topic name, or as a filter when filter is
// set. Empty topics are left to Validate.
func checkTopic(topic string, filter bool) error {
	if topic == "" {
		return nil
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("longer than %d bytes", maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("contains a NUL character")
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if !strings.ContainsAny(level, "+#") {
			continue
		}
		if !filter {
			return fmt.Errorf("wildcards are only allowed in subscriptions")
		}
		switch {
		case level == "+":
		case level == "#" && i == len(levels)-1:
		default:
			return fmt.Errorf("wildcard in level %q must fill the level, and # must be last", level)
		}
	}
	return nil
}

// certCommonName returns the CN of the first certificate in a PEM file.
// Other blocks, such as a bundled private key, are skipped.
func certCommonName(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from relay configuration
	if err != nil {
		return "", fmt.Errorf("failed to read: %w", err)
	}

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return "", fmt.Errorf("no PEM certificate block")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse: %w", err)
		}
		cn := cert.Subject.CommonName
		if cn == "" {
			return "", fmt.Errorf("subject has no CN")
		}
		if strings.ContainsAny(cn, "/+#") {
			return "", fmt.Errorf("CN %q cannot be used as a topic level", cn)
		}
		return cn, nil
	}
}
