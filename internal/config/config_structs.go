// Package config provides configuration loading and validation from an env file,
// environment variables and command line flags.
package config

import "time"

// Config holds the complete configuration
type Config struct {
	Redis    RedisConfig
	MQTT     MQTTConfig
	Pipeline PipelineConfig
	Payload  PayloadConfig
	Log      LogConfig
}

// RedisConfig holds Redis stream consumer configuration
type RedisConfig struct {
	Address             string
	Stream              string // Empty enables multi-stream discovery
	Consumer            string
	BatchSize           int
	BlockTimeout        time.Duration
	ClaimIdle           time.Duration
	ConsumerIdleTimeout time.Duration
	CleanupInterval     time.Duration
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	PingTimeout         time.Duration
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Broker               string
	ClientID             string
	PublishTopic         string
	AckTopic             string
	QoS                  byte
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	PoolSize             int
	MaxReconnectInterval time.Duration
	SubscribeTimeout     time.Duration
	DisconnectTimeout    uint // Milliseconds for graceful disconnect
	// TLS
	TLSEnabled      bool
	CACert          string
	ClientCert      string
	ClientKey       string
	InsecureSkip    bool
	UseCertCNPrefix bool // Prefix topics with the client certificate CN for broker ACLs
}

// PipelineConfig holds hot path orchestration settings
type PipelineConfig struct {
	BufferCapacity  int
	ShutdownTimeout time.Duration
	ErrorBackoff    time.Duration
	AckTimeout      time.Duration // Timeout for Redis work triggered by an ack
	PendingTTL      time.Duration // How long an ack ID waits for its acknowledgment
	PublishWorkers  int
}

// PayloadConfig selects how payloads are framed on the wire
type PayloadConfig struct {
	Codec         string // Registered wire codec name ("json", "msgpack")
	MaxFrameBytes int    // Encoded frames above this size are not published; 0 disables the check
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}
