// Package mqtt publishes payload frames to an MQTT broker and delivers the
// acknowledgments that come back on the ack topic.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/payload-relay/internal/config"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/message"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/internal/wire"
)

// Client manages MQTT publishing and ack subscription
type Client struct {
	client            mqtt.Client
	codec             wire.Codec
	publishTopic      string
	ackTopic          string
	qos               byte
	writeTimeout      time.Duration
	subscribeTimeout  time.Duration
	disconnectTimeout uint
	ackHandler        func(payload.Payload)
	mu                sync.RWMutex
	log               *log.Logger
}

// NewClient connects to the broker. codec decodes incoming ack frames.
func NewClient(cfg *config.MQTTConfig, codec wire.Codec, logger *log.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWriteTimeout(cfg.WriteTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetMessageChannelDepth(10000)
	opts.SetResumeSubs(true)
	opts.SetOrderMatters(false) // acks are matched by ID, not by order
	opts.SetMaxResumePubInFlight(1000)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if err != nil {
			logger.Error("MQTT connection lost for %s: %v", cfg.ClientID, err)
		}
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("MQTT %s reconnecting...", cfg.ClientID)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Debug("MQTT %s connected", cfg.ClientID)
	})

	if cfg.TLSEnabled {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	return &Client{
		client:            client,
		codec:             codec,
		publishTopic:      cfg.PublishTopic,
		ackTopic:          cfg.AckTopic,
		qos:               cfg.QoS,
		writeTimeout:      cfg.WriteTimeout,
		subscribeTimeout:  cfg.SubscribeTimeout,
		disconnectTimeout: cfg.DisconnectTimeout,
		log:               logger,
	}, nil
}

// newTLSConfig creates a TLS configuration from MQTT config
func newTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkip, // #nosec G402 - opt-in for test brokers
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Publish sends a frame to the publish topic and waits for the broker
// according to the configured QoS
func (c *Client) Publish(ctx context.Context, frame message.Frame) error {
	token := c.client.Publish(c.publishTopic, c.qos, false, []byte(frame))

	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqtt publish timeout")
	}
}

// SubscribeAck registers handler for ack payloads. Frames that fail to
// decode or carry no ack ID never reach the handler.
func (c *Client) SubscribeAck(handler func(payload.Payload)) error {
	c.mu.Lock()
	c.ackHandler = handler
	c.mu.Unlock()

	token := c.client.Subscribe(c.ackTopic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleAckMessage(msg.Payload())
	})

	if !token.WaitTimeout(c.subscribeTimeout) {
		return fmt.Errorf("mqtt ack subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to ack topic: %w", err)
	}

	return nil
}

func (c *Client) handleAckMessage(frame []byte) {
	c.mu.RLock()
	handler := c.ackHandler
	c.mu.RUnlock()

	if handler == nil {
		return
	}

	ack, err := parseAck(c.codec, frame)
	if err != nil {
		c.log.Debug("Dropping ack frame (%d bytes): %v", len(frame), err)
		return
	}

	handler(ack)
}

// Close disconnects from the MQTT broker
func (c *Client) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(c.disconnectTimeout)
	}
	return nil
}
